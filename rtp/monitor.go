// Package rtp mirrors received AVB audio to an RTP/UDP monitor address so a
// stream can be auditioned with any RTP player while it is being captured.
//
// Samples are sent as L16 (16-bit big-endian linear PCM) with a dynamic
// payload type and a 48 kHz clock.
package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	// PayloadType is the dynamic payload type announced for L16.
	PayloadType = 96
	// DefaultPort is the conventional RTP audio port.
	DefaultPort = 5004
	// l16Size is the width of one L16 sample.
	l16Size = 2
)

// Monitor is a listener sink that packetizes samples into RTP.
type Monitor struct {
	mu             sync.Mutex
	conn           net.PacketConn
	remote         net.Addr
	channels       int
	ssrc           uint32
	sequenceNumber uint16
	timestamp      uint32
	payload        []byte
	owned          bool
}

// NewMonitor creates a monitor sending on conn to remote. The caller keeps
// ownership of conn.
func NewMonitor(conn net.PacketConn, remote net.Addr, channels int) (*Monitor, error) {
	if conn == nil || remote == nil {
		return nil, fmt.Errorf("monitor needs a connection and a remote address")
	}
	if channels < 1 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}

	ssrcBytes := make([]byte, 4)
	if _, err := rand.Read(ssrcBytes); err != nil {
		return nil, fmt.Errorf("failed to generate SSRC: %w", err)
	}

	m := &Monitor{
		conn:     conn,
		remote:   remote,
		channels: channels,
		ssrc:     binary.BigEndian.Uint32(ssrcBytes),
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewMonitor",
		"remote":   remote.String(),
		"ssrc":     m.ssrc,
	}).Info("RTP monitor created")

	return m, nil
}

// Dial opens a UDP socket and returns a monitor that owns it.
func Dial(remote string, channels int) (*Monitor, error) {
	addr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", remote, err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	m, err := NewMonitor(conn, addr, channels)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	m.owned = true
	return m, nil
}

// StreamAddr returns the monitor address of stream index: RTP uses even
// ports, so stream i goes to base port + 2i.
func StreamAddr(host string, basePort, index int) string {
	return net.JoinHostPort(host, fmt.Sprint(basePort+2*index))
}

// SSRC returns the synchronization source of this monitor.
func (m *Monitor) SSRC() uint32 {
	return m.ssrc
}

// WriteSamples sends one RTP packet with the given interleaved samples.
func (m *Monitor) WriteSamples(samples []int32) error {
	if len(samples) == 0 {
		return nil
	}
	if len(samples)%m.channels != 0 {
		return fmt.Errorf("%d samples is not a whole number of %d-channel frames", len(samples), m.channels)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.payload) < len(samples)*l16Size {
		m.payload = make([]byte, len(samples)*l16Size)
	}
	m.payload = m.payload[:len(samples)*l16Size]
	for i, v := range samples {
		binary.BigEndian.PutUint16(m.payload[i*l16Size:], uint16(v>>16))
	}

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    PayloadType,
			SequenceNumber: m.sequenceNumber,
			Timestamp:      m.timestamp,
			SSRC:           m.ssrc,
		},
		Payload: m.payload,
	}
	data, err := packet.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal RTP packet: %w", err)
	}
	if _, err := m.conn.WriteTo(data, m.remote); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Monitor.WriteSamples",
			"remote":   m.remote.String(),
			"error":    err.Error(),
		}).Debug("Failed to send RTP packet")
		return fmt.Errorf("failed to send RTP packet: %w", err)
	}

	m.sequenceNumber++
	m.timestamp += uint32(len(samples) / m.channels)
	return nil
}

// Close releases the socket if the monitor opened it.
func (m *Monitor) Close() error {
	if !m.owned {
		return nil
	}
	return m.conn.Close()
}
