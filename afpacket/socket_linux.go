//go:build linux

package afpacket

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// htons converts a protocol number to network order for AF_PACKET calls.
func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}

// openSocket creates a non-blocking AF_PACKET socket bound to the interface.
func openSocket(name string, proto uint16) (int, *net.Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return -1, nil, fmt.Errorf("interface %s: %w", name, err)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(htons(proto)))
	if err != nil {
		return -1, nil, fmt.Errorf("socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{Protocol: htons(proto), Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("bind %s: %w", name, err)
	}
	return fd, ifi, nil
}
