package listener

import "errors"

var (
	// ErrAlreadyRunning indicates a consumer already exists for the stream.
	ErrAlreadyRunning = errors.New("consumer already running")

	// ErrNotClaimed indicates a descriptor that was not claimed from the
	// registry before Spawn.
	ErrNotClaimed = errors.New("stream not claimed")

	// ErrStopped indicates the demux was stopped.
	ErrStopped = errors.New("demux stopped")

	// ErrNoStreams indicates an empty accepted stream set.
	ErrNoStreams = errors.New("no accepted streams")
)
