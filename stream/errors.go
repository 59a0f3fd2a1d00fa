package stream

import "errors"

var (
	// ErrInvalidID indicates a stream id string could not be parsed.
	ErrInvalidID = errors.New("invalid stream id")

	// ErrInvalidMAC indicates a MAC address string could not be parsed.
	ErrInvalidMAC = errors.New("invalid MAC address")

	// ErrDuplicateID indicates the registry already holds the stream id.
	ErrDuplicateID = errors.New("duplicate stream id")

	// ErrRegistryFull indicates the registry reached its configured capacity.
	ErrRegistryFull = errors.New("stream registry full")
)
