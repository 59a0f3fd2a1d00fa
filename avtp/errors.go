package avtp

import "errors"

var (
	// ErrShortFrame indicates a buffer too small for the header stack.
	ErrShortFrame = errors.New("frame too short")

	// ErrNotAVTP indicates a frame whose ethertype is not 0x22F0.
	ErrNotAVTP = errors.New("not an AVTP frame")

	// ErrSampleIndex indicates a sample slot outside the frame.
	ErrSampleIndex = errors.New("sample index out of range")
)
