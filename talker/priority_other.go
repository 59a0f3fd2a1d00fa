//go:build !linux

package talker

func raisePriority(int) error {
	return ErrPriorityUnsupported
}
