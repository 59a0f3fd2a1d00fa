package avtp

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/avbstream/stream"
)

// Offsets of the per-packet fields in a tagged frame.
const (
	offDestination    = 0
	offStreamFlags    = EthernetHeaderSize + 1
	offSequence       = EthernetHeaderSize + 2
	offStreamID       = EthernetHeaderSize + StreamIDOffset
	offTimestamp      = EthernetHeaderSize + 12
	offDBC            = EthernetHeaderSize + StreamHeaderSize + 5
	offSamples        = HeaderSize
	timestampValidBit = 0x01
)

// cipPayloadHeader is the part of the 61883 header counted in stream_data_length.
const cipPayloadHeader = CIPHeaderSize - 2

// TemplateConfig describes the static portion of every transmitted frame.
type TemplateConfig struct {
	Source      stream.MAC
	Destination stream.MAC
	VLAN        VLANTag
	Samples     int // sample slots per frame (samples per channel x channels)
}

// Template builds a fully stamped frame: Ethernet header with VLAN tag,
// 1722 header defaults, 61883 AM824 header and labelled, zeroed sample slots.
// The pool copies it into every slot once.
func Template(cfg TemplateConfig) ([]byte, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("%w: %d samples", ErrSampleIndex, cfg.Samples)
	}
	buf := make([]byte, FrameSize(cfg.Samples))

	eth := EthernetHeader{
		Destination: cfg.Destination,
		Source:      cfg.Source,
		VLAN:        cfg.VLAN,
		EtherType:   EtherTypeAVTP,
	}
	if err := eth.MarshalTo(buf); err != nil {
		return nil, err
	}

	var placeholder stream.ID
	copy(placeholder[:], cfg.Source[:])
	sh := StreamHeader{
		Subtype:          SubtypeIEC61883,
		StreamIDValid:    true,
		StreamID:         placeholder,
		StreamDataLength: uint16(cipPayloadHeader + cfg.Samples*SampleSize),
	}
	if err := sh.MarshalTo(buf[EthernetHeaderSize:]); err != nil {
		return nil, err
	}

	cip := DefaultCIPHeader()
	if err := cip.MarshalTo(buf[EthernetHeaderSize+StreamHeaderSize:]); err != nil {
		return nil, err
	}

	f := Frame(buf)
	for i := 0; i < cfg.Samples; i++ {
		f.SetSample(i, 0)
	}
	return buf, nil
}

// Frame is a tagged AVTP frame in wire form. Its accessors read and write
// the per-packet fields in place.
type Frame []byte

// Destination returns the destination MAC.
func (f Frame) Destination() stream.MAC {
	var m stream.MAC
	copy(m[:], f[offDestination:offDestination+6])
	return m
}

// SetDestination stamps the destination MAC.
func (f Frame) SetDestination(m stream.MAC) {
	copy(f[offDestination:offDestination+6], m[:])
}

// StreamID returns the 1722 stream id.
func (f Frame) StreamID() stream.ID {
	var id stream.ID
	copy(id[:], f[offStreamID:offStreamID+stream.IDSize])
	return id
}

// SetStreamID stamps the 1722 stream id.
func (f Frame) SetStreamID(id stream.ID) {
	copy(f[offStreamID:offStreamID+stream.IDSize], id[:])
}

// Sequence returns the 1722 sequence number.
func (f Frame) Sequence() uint8 {
	return f[offSequence]
}

// SetSequence stamps the 1722 sequence number.
func (f Frame) SetSequence(seq uint8) {
	f[offSequence] = seq
}

// TimestampValid reports the tv flag.
func (f Frame) TimestampValid() bool {
	return f[offStreamFlags]&timestampValidBit != 0
}

// SetTimestampValid sets or clears the tv flag.
func (f Frame) SetTimestampValid(valid bool) {
	if valid {
		f[offStreamFlags] |= timestampValidBit
	} else {
		f[offStreamFlags] &^= timestampValidBit
	}
}

// Timestamp returns the presentation timestamp.
func (f Frame) Timestamp() uint32 {
	return binary.BigEndian.Uint32(f[offTimestamp : offTimestamp+4])
}

// SetTimestamp stamps the presentation timestamp.
func (f Frame) SetTimestamp(ts uint32) {
	binary.BigEndian.PutUint32(f[offTimestamp:offTimestamp+4], ts)
}

// DBC returns the 61883 data block continuity counter.
func (f Frame) DBC() uint8 {
	return f[offDBC]
}

// SetDBC stamps the data block continuity counter.
func (f Frame) SetDBC(dbc uint8) {
	f[offDBC] = dbc
}

// SampleCount returns the number of sample slots in the frame.
func (f Frame) SampleCount() int {
	if len(f) < offSamples {
		return 0
	}
	return (len(f) - offSamples) / SampleSize
}

// SetSample encodes sample into slot i.
func (f Frame) SetSample(i int, sample int32) {
	off := offSamples + i*SampleSize
	EncodeSample(f[off:off+SampleSize], sample)
}

// Sample decodes slot i.
func (f Frame) Sample(i int) int32 {
	off := offSamples + i*SampleSize
	return DecodeSample(f[off : off+SampleSize])
}

// Packet is a decoded received frame.
type Packet struct {
	Ethernet EthernetHeader
	Stream   StreamHeader
	CIP      CIPHeader
	// Payload holds the raw sample slots.
	Payload []byte
}

// Samples decodes every complete sample slot in the payload.
func (p *Packet) Samples() []int32 {
	n := len(p.Payload) / SampleSize
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = DecodeSample(p.Payload[i*SampleSize:])
	}
	return out
}

// ParseFrame decodes a tagged or VLAN-stripped AVTP frame.
func ParseFrame(b []byte) (*Packet, error) {
	p := &Packet{}
	n, err := p.Ethernet.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	if p.Ethernet.EtherType != EtherTypeAVTP {
		return nil, fmt.Errorf("%w: ethertype 0x%04x", ErrNotAVTP, p.Ethernet.EtherType)
	}
	if err := p.Stream.Unmarshal(b[n:]); err != nil {
		return nil, err
	}
	n += StreamHeaderSize
	if err := p.CIP.Unmarshal(b[n:]); err != nil {
		return nil, err
	}
	n += CIPHeaderSize
	p.Payload = b[n:]
	return p, nil
}

// PeekStreamID returns the stream id of an AVTP frame without decoding the
// rest of it. VLAN-stripped frames carry the id four bytes earlier.
func PeekStreamID(b []byte) (stream.ID, error) {
	var id stream.ID
	if len(b) < UntaggedHeaderSize {
		return id, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	hdr := EthernetHeaderSize
	etherType := binary.BigEndian.Uint16(b[12:14])
	if etherType == TPIDVLAN {
		if len(b) < EthernetHeaderSize {
			return id, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
		}
		etherType = binary.BigEndian.Uint16(b[16:18])
	} else {
		hdr = UntaggedHeaderSize
	}
	if etherType != EtherTypeAVTP {
		return id, fmt.Errorf("%w: ethertype 0x%04x", ErrNotAVTP, etherType)
	}
	off := hdr + StreamIDOffset
	if len(b) < off+stream.IDSize {
		return id, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	copy(id[:], b[off:off+stream.IDSize])
	return id, nil
}
