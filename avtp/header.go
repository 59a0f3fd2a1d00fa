package avtp

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/avbstream/stream"
)

const (
	// TPIDVLAN is the 802.1Q tag protocol identifier.
	TPIDVLAN uint16 = 0x8100
	// EtherTypeAVTP is the IEEE 1722 ethertype.
	EtherTypeAVTP uint16 = 0x22F0

	// EthernetHeaderSize covers both MACs, the VLAN tag and the ethertype.
	EthernetHeaderSize = 18
	// UntaggedHeaderSize is the Ethernet header when the tag was stripped.
	UntaggedHeaderSize = 14
	// StreamHeaderSize is the 1722 stream header length.
	StreamHeaderSize = 22
	// CIPHeaderSize is the 61883 header length (2 bytes of 1722 tag/tcode + 8 CIP bytes).
	CIPHeaderSize = 10
	// SampleSize is the size of one AM824 sample slot.
	SampleSize = 4
	// SampleLabel is the MBLA label for 24-bit multi-bit linear audio.
	SampleLabel byte = 0x40

	// HeaderSize is the offset of the first sample slot in a tagged frame.
	HeaderSize = EthernetHeaderSize + StreamHeaderSize + CIPHeaderSize

	// StreamIDOffset is the stream id offset within the 1722 header.
	StreamIDOffset = 4

	// SubtypeIEC61883 identifies 61883/IIDC payloads.
	SubtypeIEC61883 byte = 0x00
)

// FrameSize returns the length of a tagged frame carrying n sample slots.
func FrameSize(n int) int {
	return HeaderSize + n*SampleSize
}

// VLANTag is the 802.1Q tag control information.
type VLANTag struct {
	Priority uint8  // PCP, 3 bits
	DropOK   bool   // DEI
	VID      uint16 // 12 bits
}

// TCI packs the tag into its 16-bit wire form.
func (v VLANTag) TCI() uint16 {
	tci := uint16(v.Priority&0x7)<<13 | v.VID&0x0FFF
	if v.DropOK {
		tci |= 1 << 12
	}
	return tci
}

// ParseTCI unpacks a 16-bit tag control field.
func ParseTCI(tci uint16) VLANTag {
	return VLANTag{
		Priority: uint8(tci >> 13),
		DropOK:   tci&(1<<12) != 0,
		VID:      tci & 0x0FFF,
	}
}

// EthernetHeader is the tagged Ethernet II header.
type EthernetHeader struct {
	Destination stream.MAC
	Source      stream.MAC
	VLAN        VLANTag
	EtherType   uint16
}

// MarshalTo writes the header into b, which must hold EthernetHeaderSize bytes.
func (h *EthernetHeader) MarshalTo(b []byte) error {
	if len(b) < EthernetHeaderSize {
		return fmt.Errorf("%w: ethernet header needs %d bytes, have %d", ErrShortFrame, EthernetHeaderSize, len(b))
	}
	copy(b[0:6], h.Destination[:])
	copy(b[6:12], h.Source[:])
	binary.BigEndian.PutUint16(b[12:14], TPIDVLAN)
	binary.BigEndian.PutUint16(b[14:16], h.VLAN.TCI())
	binary.BigEndian.PutUint16(b[16:18], h.EtherType)
	return nil
}

// Unmarshal reads a tagged or untagged Ethernet header and returns the
// number of bytes consumed.
func (h *EthernetHeader) Unmarshal(b []byte) (int, error) {
	if len(b) < UntaggedHeaderSize {
		return 0, fmt.Errorf("%w: ethernet header", ErrShortFrame)
	}
	copy(h.Destination[:], b[0:6])
	copy(h.Source[:], b[6:12])
	if binary.BigEndian.Uint16(b[12:14]) != TPIDVLAN {
		h.VLAN = VLANTag{}
		h.EtherType = binary.BigEndian.Uint16(b[12:14])
		return UntaggedHeaderSize, nil
	}
	if len(b) < EthernetHeaderSize {
		return 0, fmt.Errorf("%w: vlan tag", ErrShortFrame)
	}
	h.VLAN = ParseTCI(binary.BigEndian.Uint16(b[14:16]))
	h.EtherType = binary.BigEndian.Uint16(b[16:18])
	return EthernetHeaderSize, nil
}

// StreamHeader is the IEEE 1722 common stream header.
type StreamHeader struct {
	ControlData        bool
	Subtype            uint8
	StreamIDValid      bool
	Version            uint8
	MediaRestart       bool
	GatewayValid       bool
	TimestampValid     bool
	Sequence           uint8
	TimestampUncertain bool
	StreamID           stream.ID
	Timestamp          uint32
	GatewayInfo        uint32
	StreamDataLength   uint16
}

// MarshalTo writes the header into b, which must hold StreamHeaderSize bytes.
func (h *StreamHeader) MarshalTo(b []byte) error {
	if len(b) < StreamHeaderSize {
		return fmt.Errorf("%w: stream header needs %d bytes, have %d", ErrShortFrame, StreamHeaderSize, len(b))
	}
	b[0] = h.Subtype & 0x7F
	if h.ControlData {
		b[0] |= 0x80
	}
	b[1] = (h.Version & 0x7) << 4
	if h.StreamIDValid {
		b[1] |= 0x80
	}
	if h.MediaRestart {
		b[1] |= 0x08
	}
	if h.GatewayValid {
		b[1] |= 0x02
	}
	if h.TimestampValid {
		b[1] |= 0x01
	}
	b[2] = h.Sequence
	b[3] = 0
	if h.TimestampUncertain {
		b[3] = 0x01
	}
	copy(b[4:12], h.StreamID[:])
	binary.BigEndian.PutUint32(b[12:16], h.Timestamp)
	binary.BigEndian.PutUint32(b[16:20], h.GatewayInfo)
	binary.BigEndian.PutUint16(b[20:22], h.StreamDataLength)
	return nil
}

// Unmarshal reads the header from b.
func (h *StreamHeader) Unmarshal(b []byte) error {
	if len(b) < StreamHeaderSize {
		return fmt.Errorf("%w: stream header", ErrShortFrame)
	}
	h.ControlData = b[0]&0x80 != 0
	h.Subtype = b[0] & 0x7F
	h.StreamIDValid = b[1]&0x80 != 0
	h.Version = (b[1] >> 4) & 0x7
	h.MediaRestart = b[1]&0x08 != 0
	h.GatewayValid = b[1]&0x02 != 0
	h.TimestampValid = b[1]&0x01 != 0
	h.Sequence = b[2]
	h.TimestampUncertain = b[3]&0x01 != 0
	copy(h.StreamID[:], b[4:12])
	h.Timestamp = binary.BigEndian.Uint32(b[12:16])
	h.GatewayInfo = binary.BigEndian.Uint32(b[16:20])
	h.StreamDataLength = binary.BigEndian.Uint16(b[20:22])
	return nil
}

// CIPHeader is the 1722 tag/channel/tcode word plus the IEC 61883 CIP header.
type CIPHeader struct {
	Tag           uint8 // 2 bits
	Channel       uint8 // 6 bits
	TCode         uint8 // 4 bits
	SY            uint8 // 4 bits
	SourceID      uint8 // 6 bits
	DataBlockSize uint8
	FractionNum   uint8 // 2 bits
	QuadletPad    uint8 // 3 bits
	SPH           bool
	DBC           uint8
	EOH           uint8 // 2 bits, second quadlet
	FormatID      uint8 // 6 bits
	FDF           uint8
	SYT           uint16
}

// DefaultCIPHeader returns the AM824 header values used for 48 kHz audio.
func DefaultCIPHeader() CIPHeader {
	return CIPHeader{
		Tag:           0x1,
		Channel:       0x1F,
		TCode:         0xA,
		SourceID:      0x3F,
		DataBlockSize: 0x1,
		EOH:           0x2,
		FormatID:      0x10,
		FDF:           0x02,
		SYT:           0xFFFF,
	}
}

// MarshalTo writes the header into b, which must hold CIPHeaderSize bytes.
func (h *CIPHeader) MarshalTo(b []byte) error {
	if len(b) < CIPHeaderSize {
		return fmt.Errorf("%w: cip header needs %d bytes, have %d", ErrShortFrame, CIPHeaderSize, len(b))
	}
	b[0] = (h.Tag&0x3)<<6 | h.Channel&0x3F
	b[1] = (h.TCode&0xF)<<4 | h.SY&0xF
	b[2] = h.SourceID & 0x3F
	b[3] = h.DataBlockSize
	b[4] = (h.FractionNum&0x3)<<6 | (h.QuadletPad&0x7)<<3
	if h.SPH {
		b[4] |= 0x04
	}
	b[5] = h.DBC
	b[6] = (h.EOH&0x3)<<6 | h.FormatID&0x3F
	b[7] = h.FDF
	binary.BigEndian.PutUint16(b[8:10], h.SYT)
	return nil
}

// Unmarshal reads the header from b.
func (h *CIPHeader) Unmarshal(b []byte) error {
	if len(b) < CIPHeaderSize {
		return fmt.Errorf("%w: cip header", ErrShortFrame)
	}
	h.Tag = b[0] >> 6
	h.Channel = b[0] & 0x3F
	h.TCode = b[1] >> 4
	h.SY = b[1] & 0xF
	h.SourceID = b[2] & 0x3F
	h.DataBlockSize = b[3]
	h.FractionNum = b[4] >> 6
	h.QuadletPad = (b[4] >> 3) & 0x7
	h.SPH = b[4]&0x04 != 0
	h.DBC = b[5]
	h.EOH = b[6] >> 6
	h.FormatID = b[6] & 0x3F
	h.FDF = b[7]
	h.SYT = binary.BigEndian.Uint16(b[8:10])
	return nil
}

// EncodeSample packs a left-aligned 32-bit PCM sample into an AM824 slot:
// the label byte followed by the upper 24 bits in network order.
func EncodeSample(b []byte, sample int32) {
	v := uint32(sample)
	b[0] = SampleLabel
	b[1] = byte(v >> 24)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 8)
}

// DecodeSample drops the label and returns the 24-bit value left-aligned in
// an int32, the inverse of EncodeSample.
func DecodeSample(b []byte) int32 {
	v := binary.BigEndian.Uint32(b) & 0x00FFFFFF
	return int32(v << 8)
}
