package msrp

import (
	"encoding/hex"
	"fmt"

	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/stream"
)

// Default SR class A parameters.
const (
	DefaultPort = 7500

	ClassA         uint8  = 6
	ClassAPriority uint8  = 3
	DefaultVID     uint16 = 2
)

// Listener declaration substates carried in the D field.
const (
	DeclAskingFailed = 1
	DeclReady        = 2
	DeclReadyFailed  = 3
)

// Domain is an SR class domain declaration.
type Domain struct {
	Class    uint8
	Priority uint8
	VID      uint16
}

// DefaultDomain is SR class A on VLAN 2.
var DefaultDomain = Domain{Class: ClassA, Priority: ClassAPriority, VID: DefaultVID}

// Advertisement holds the talker declaration attributes of one stream.
type Advertisement struct {
	StreamID    stream.ID
	Destination stream.MAC
	VID         uint16
	// MaxFrameSize is the AVTP payload size, excluding MAC header and tag.
	MaxFrameSize int
	// Intervals is the number of frames per class observation interval.
	Intervals int
	Priority  uint8
	// Latency is the accumulated latency in nanoseconds.
	Latency int
}

func domainCommand(d Domain) string {
	return fmt.Sprintf("S+D:C=%d,P=%d,V=%04x", d.Class, d.Priority, d.VID)
}

func joinVLANCommand(vid uint16) string {
	return fmt.Sprintf("V++:I=%04x", vid)
}

func advertiseCommand(verb string, a Advertisement) string {
	return fmt.Sprintf("%s:S=%s,A=%s,V=%04x,Z=%d,I=%d,P=%d,L=%d",
		verb, a.StreamID.Hex(), hex.EncodeToString(a.Destination[:]),
		a.VID, a.MaxFrameSize, a.Intervals, a.Priority, a.Latency)
}

func readyCommand(id stream.ID) string {
	return fmt.Sprintf("S+L:L=%s,D=%d", id.Hex(), DeclReady)
}

func leaveCommand(id stream.ID) string {
	return fmt.Sprintf("S-L:L=%s,D=%d", id.Hex(), DeclReadyFailed)
}

const byeCommand = "BYE"

// encodeDatagram zero-pads msg into one fixed-size control datagram.
func encodeDatagram(msg string) ([]byte, error) {
	if err := limits.ValidateDatagram([]byte(msg)); err != nil {
		return nil, err
	}
	buf := make([]byte, limits.ControlDatagramSize)
	copy(buf, msg)
	return buf, nil
}

// verbOf returns the command verb used as a metrics label.
func verbOf(msg string) string {
	if len(msg) >= 3 {
		return msg[:3]
	}
	return msg
}
