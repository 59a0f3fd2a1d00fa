//go:build linux

package talker

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// raisePriority sets the nice value of the calling OS thread. The caller must
// have locked its goroutine to the thread.
func raisePriority(nice int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
		return fmt.Errorf("setpriority %d: %w", nice, err)
	}
	return nil
}
