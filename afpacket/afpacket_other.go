//go:build !linux

package afpacket

import (
	"github.com/opd-ai/avbstream/clock"
	"github.com/opd-ai/avbstream/device"
	"github.com/opd-ai/avbstream/stream"
)

// Capture is unavailable on this platform.
type Capture struct{}

// OpenCapture returns ErrUnsupported.
func OpenCapture(string, []stream.MAC) (*Capture, error) {
	return nil, ErrUnsupported
}

// ReadPacket returns ErrUnsupported.
func (*Capture) ReadPacket([]byte) (int, error) {
	return 0, ErrUnsupported
}

// Close does nothing.
func (*Capture) Close() error {
	return nil
}

// DeviceConfig configures OpenDevice.
type DeviceConfig struct {
	RingSize int
	PageSize int
	Clock    clock.TimeProvider
}

// OpenDevice returns ErrUnsupported.
func OpenDevice(string, DeviceConfig) (device.Device, error) {
	return nil, ErrUnsupported
}
