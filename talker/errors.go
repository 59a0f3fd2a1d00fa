package talker

import "errors"

var (
	// ErrNoStreams indicates that no stream could be reserved.
	ErrNoStreams = errors.New("no streams reserved")

	// ErrTransmit indicates a non-transient transmit failure. It ends the session.
	ErrTransmit = errors.New("transmit failed")

	// ErrChannelMismatch indicates an audio source with the wrong channel count.
	ErrChannelMismatch = errors.New("audio channel count mismatch")

	// ErrPriorityUnsupported is returned by raisePriority where thread
	// priorities cannot be changed.
	ErrPriorityUnsupported = errors.New("thread priority not supported")
)
