// Package limits provides centralized size limits for the AVB stack.
package limits

import (
	"errors"
	"fmt"
)

const (
	// ControlDatagramSize is the fixed size of every MRP daemon control datagram.
	ControlDatagramSize = 1500

	// MaxTalkerStreams bounds the number of streams one talker can advertise.
	MaxTalkerStreams = 256

	// DefaultAcceptedStreams is the default capacity of the listener's accepted set.
	DefaultAcceptedStreams = 2

	// MaxAcceptedStreams bounds the configurable accepted stream capacity.
	MaxAcceptedStreams = 64

	// SamplesPerFrame is the number of sample periods carried in one frame.
	// At 48 kHz and one frame per 125us observation interval this is 6.
	SamplesPerFrame = 6

	// Channels is the number of interleaved audio channels per frame.
	Channels = 2

	// SampleRate is the nominal audio sample rate in Hz.
	SampleRate = 48000

	// MaxFrameSize is the largest Ethernet frame the pool will slice a page into.
	MaxFrameSize = 1522
)

var (
	// ErrDatagramEmpty indicates an empty control datagram was provided
	ErrDatagramEmpty = errors.New("empty datagram")

	// ErrDatagramTooLarge indicates a control datagram exceeds ControlDatagramSize
	ErrDatagramTooLarge = errors.New("datagram too large")

	// ErrStreamCountInvalid indicates a stream count outside the supported range
	ErrStreamCountInvalid = errors.New("invalid stream count")

	// ErrFrameSizeInvalid indicates a frame length the pool cannot use
	ErrFrameSizeInvalid = errors.New("invalid frame size")
)

// ValidateDatagram checks that a control message fits into one fixed-size datagram.
func ValidateDatagram(msg []byte) error {
	if len(msg) == 0 {
		return ErrDatagramEmpty
	}
	if len(msg) > ControlDatagramSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(msg), ControlDatagramSize)
	}
	return nil
}

// ValidateStreamCount checks a talker stream count against 1..MaxTalkerStreams.
func ValidateStreamCount(n int) error {
	if n < 1 || n > MaxTalkerStreams {
		return fmt.Errorf("%w: %d not in range 1-%d", ErrStreamCountInvalid, n, MaxTalkerStreams)
	}
	return nil
}

// ValidateAcceptedCapacity checks that n accepted streams fit in the given capacity.
func ValidateAcceptedCapacity(n, capacity int) error {
	if capacity < 1 || capacity > MaxAcceptedStreams {
		return fmt.Errorf("%w: capacity %d not in range 1-%d", ErrStreamCountInvalid, capacity, MaxAcceptedStreams)
	}
	if n < 1 || n > capacity {
		return fmt.Errorf("%w: %d accepted streams for capacity %d", ErrStreamCountInvalid, n, capacity)
	}
	return nil
}

// ValidateFrameSize checks that a frame length is usable as a pool slot size.
func ValidateFrameSize(n int) error {
	if n <= 0 || n > MaxFrameSize {
		return fmt.Errorf("%w: %d not in range 1-%d", ErrFrameSizeInvalid, n, MaxFrameSize)
	}
	return nil
}
