package afpacket

import (
	"fmt"
	"net"

	"github.com/opd-ai/avbstream/stream"
)

// HardwareAddr returns the Ethernet address of the named interface. The
// talker derives its stream ids from it.
func HardwareAddr(name string) (stream.MAC, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return stream.MAC{}, fmt.Errorf("interface %s: %w", name, err)
	}
	if len(ifi.HardwareAddr) != len(stream.MAC{}) {
		return stream.MAC{}, fmt.Errorf("%w: %s", ErrNoHardwareAddr, name)
	}
	var m stream.MAC
	copy(m[:], ifi.HardwareAddr)
	return m, nil
}
