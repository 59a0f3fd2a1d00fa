package pool

import "errors"

var (
	// ErrNoMemory indicates the page cannot hold a single frame slot.
	ErrNoMemory = errors.New("page too small for frame slot")

	// ErrNotOwned indicates a buffer handed back that the caller does not own.
	ErrNotOwned = errors.New("buffer not owned by caller")

	// ErrPoolClosed indicates use of a pool after Close.
	ErrPoolClosed = errors.New("pool closed")
)
