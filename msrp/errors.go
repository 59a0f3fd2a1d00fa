package msrp

import "errors"

var (
	// ErrSocket indicates the control socket could not be created or bound.
	ErrSocket = errors.New("control socket setup failed")

	// ErrCommandFailed indicates a command could not be delivered to the daemon.
	ErrCommandFailed = errors.New("reservation command failed")

	// ErrShortWrite indicates a datagram write transferred fewer bytes than
	// the fixed datagram size.
	ErrShortWrite = errors.New("short datagram write")

	// ErrInvalidTransition indicates an operation not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoRegistry indicates a listener operation on a client without an
	// accepted stream registry.
	ErrNoRegistry = errors.New("no accepted stream registry")
)
