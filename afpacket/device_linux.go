//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/avbstream/clock"
	"github.com/opd-ai/avbstream/device"
)

// Default software ring geometry.
const (
	DefaultRingSize = 64
	DefaultPageSize = 4096
)

// DeviceConfig configures OpenDevice.
type DeviceConfig struct {
	RingSize int
	PageSize int
	// Clock provides the local wallclock. Defaults to the system clock.
	Clock clock.TimeProvider
}

// Device is a software device.Device on an AF_PACKET socket.
type Device struct {
	mu       sync.Mutex
	fd       int
	ifindex  int
	iface    string
	ringSize int
	pageSize int
	clock    clock.TimeProvider
	ring     []*device.Packet
	closed   bool
}

// OpenDevice opens a transmit-only raw socket on iface.
func OpenDevice(iface string, cfg DeviceConfig) (*Device, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	// Protocol 0 binds for sending only.
	fd, ifi, err := openSocket(iface, 0)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OpenDevice",
		"interface": iface,
		"ring_size": cfg.RingSize,
	}).Info("Software transmit device opened")

	return &Device{
		fd:       fd,
		ifindex:  ifi.Index,
		iface:    iface,
		ringSize: cfg.RingSize,
		pageSize: cfg.PageSize,
		clock:    cfg.Clock,
	}, nil
}

// AllocPage implements device.Device with ordinary memory.
func (d *Device) AllocPage() (*device.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrClosed
	}
	return &device.Page{Mem: make([]byte, d.pageSize)}, nil
}

// FreePage implements device.Device.
func (d *Device) FreePage(*device.Page) error {
	return nil
}

// Xmit queues p until its launch time.
func (d *Device) Xmit(_ int, p *device.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	if len(d.ring) >= d.ringSize {
		return device.ErrQueueFull
	}
	d.ring = append(d.ring, p)
	return nil
}

// Clean sends the queued packets whose launch time has passed, in order, and
// returns them. When the socket buffer is full the rest stay queued; other
// send errors drop the frame.
func (d *Device) Clean(int) []*device.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := clock.LocalNanos(d.clock)
	done := 0
	for _, p := range d.ring {
		if p.Attime > now {
			break
		}
		if err := d.send(p); err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOBUFS) {
				break
			}
			logrus.WithFields(logrus.Fields{
				"function":  "Device.Clean",
				"interface": d.iface,
				"error":     err.Error(),
			}).Warn("Frame send failed, dropping")
		}
		done++
	}

	out := append([]*device.Packet(nil), d.ring[:done]...)
	d.ring = append(d.ring[:0], d.ring[done:]...)
	return out
}

func (d *Device) send(p *device.Packet) error {
	frame := p.Frame()
	sa := &unix.SockaddrLinklayer{Ifindex: d.ifindex, Halen: 6}
	copy(sa.Addr[:], frame[:6])
	if err := unix.Sendto(d.fd, frame, 0, sa); err != nil {
		return fmt.Errorf("sendto: %w", err)
	}
	return nil
}

// SetClassBandwidth records the requested reservation. Software transmission
// has no credit based shaper; launch times pace the stream instead.
func (d *Device) SetClassBandwidth(classA, classB, frameSizeA, frameSizeB int) error {
	logrus.WithFields(logrus.Fields{
		"function":     "Device.SetClassBandwidth",
		"class_a":      classA,
		"class_b":      classB,
		"frame_size_a": frameSizeA,
		"frame_size_b": frameSizeB,
	}).Info("Class bandwidth not enforced by software device")
	return nil
}

// Wallclock implements device.Device.
func (d *Device) Wallclock() (uint64, error) {
	return clock.LocalNanos(d.clock), nil
}

// Close drops any queued packets and closes the socket.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.ring = nil
	return unix.Close(d.fd)
}
