//go:build linux

package afpacket

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/avbstream/stream"
)

// Capture is a filtered AF_PACKET receive handle.
type Capture struct {
	file  *os.File
	iface string
}

// OpenCapture opens a capture on iface that passes frames addressed to any of
// dests. Multicast destinations are joined on the interface.
func OpenCapture(iface string, dests []stream.MAC) (*Capture, error) {
	raw, err := assembleFilter(dests)
	if err != nil {
		return nil, err
	}

	fd, ifi, err := openSocket(iface, unix.ETH_P_ALL)
	if err != nil {
		return nil, err
	}

	filters := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filters[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog := &unix.SockFprog{Len: uint16(len(filters)), Filter: &filters[0]}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("attach filter: %w", err)
	}

	for _, d := range dests {
		if !d.IsMulticast() {
			continue
		}
		mreq := &unix.PacketMreq{Ifindex: int32(ifi.Index), Type: unix.PACKET_MR_MULTICAST, Alen: uint16(len(d))}
		copy(mreq.Address[:], d[:])
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("join %s: %w", d, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "OpenCapture",
		"interface":    iface,
		"destinations": len(dests),
	}).Info("Capture opened")

	return &Capture{file: os.NewFile(uintptr(fd), "afpacket:"+iface), iface: iface}, nil
}

// ReadPacket blocks until a frame passes the filter.
func (c *Capture) ReadPacket(buf []byte) (int, error) {
	return c.file.Read(buf)
}

// Close releases the socket, waking a blocked ReadPacket with os.ErrClosed.
func (c *Capture) Close() error {
	return c.file.Close()
}
