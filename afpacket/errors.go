package afpacket

import "errors"

var (
	// ErrUnsupported is returned on platforms without AF_PACKET.
	ErrUnsupported = errors.New("AF_PACKET not supported on this platform")

	// ErrNoHardwareAddr indicates an interface without an Ethernet address.
	ErrNoHardwareAddr = errors.New("interface has no Ethernet address")

	// ErrTooManyDestinations indicates more destinations than one filter
	// program can branch over.
	ErrTooManyDestinations = errors.New("too many filter destinations")
)
