package stream

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Descriptor describes one stream known to the talker or listener.
type Descriptor struct {
	ID          ID
	Destination MAC
	// Index is the stable position of the descriptor in its registry.
	Index int

	spawned  atomic.Bool
	received atomic.Uint64
}

// Spawned reports whether a consumer was created for this stream.
func (d *Descriptor) Spawned() bool {
	return d.spawned.Load()
}

// Received returns the number of frames counted for this stream.
func (d *Descriptor) Received() uint64 {
	return d.received.Load()
}

// CountReceived increments the received frame counter and returns the new value.
// Only the consumer goroutine that owns the stream calls it.
func (d *Descriptor) CountReceived() uint64 {
	return d.received.Add(1)
}

// Registry owns the set of stream descriptors. Its membership is fixed once
// the first reader starts; Add is only called during setup.
type Registry struct {
	mu          sync.RWMutex
	capacity    int
	descriptors []*Descriptor
	byID        map[ID]*Descriptor
}

// NewRegistry creates an empty registry holding at most capacity streams.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity:    capacity,
		descriptors: make([]*Descriptor, 0, capacity),
		byID:        make(map[ID]*Descriptor, capacity),
	}
}

// Add registers a new stream. Stream ids are unique within a registry.
func (r *Registry) Add(id ID, dest MAC) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if len(r.descriptors) >= r.capacity {
		return nil, fmt.Errorf("%w: capacity %d", ErrRegistryFull, r.capacity)
	}

	d := &Descriptor{ID: id, Destination: dest, Index: len(r.descriptors)}
	r.descriptors = append(r.descriptors, d)
	r.byID[id] = d

	logrus.WithFields(logrus.Fields{
		"function":    "Registry.Add",
		"stream_id":   id.String(),
		"destination": dest.String(),
		"index":       d.Index,
	}).Debug("Registered stream")

	return d, nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id ID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Claim marks the stream as spawned and returns its descriptor. It succeeds
// exactly once per id; unknown ids and already spawned streams return false
// and leave the registry unchanged.
func (r *Registry) Claim(id ID) (*Descriptor, bool) {
	d, ok := r.Lookup(id)
	if !ok {
		return nil, false
	}
	if !d.spawned.CompareAndSwap(false, true) {
		return nil, false
	}
	return d, true
}

// Release undoes a Claim whose consumer could not be created, so a later
// advertisement can claim the stream again. It reports whether id was
// claimed.
func (r *Registry) Release(id ID) bool {
	d, ok := r.Lookup(id)
	if !ok {
		return false
	}
	return d.spawned.CompareAndSwap(true, false)
}

// Descriptors returns the registered descriptors in index order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Spawned returns the descriptors whose consumer has been created.
func (r *Registry) Spawned() []*Descriptor {
	var out []*Descriptor
	for _, d := range r.Descriptors() {
		if d.Spawned() {
			out = append(out, d)
		}
	}
	return out
}

// Destinations returns the distinct destination addresses in index order.
func (r *Registry) Destinations() []MAC {
	seen := make(map[MAC]bool)
	var out []MAC
	for _, d := range r.Descriptors() {
		if !seen[d.Destination] {
			seen[d.Destination] = true
			out = append(out, d.Destination)
		}
	}
	return out
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// Capacity returns the configured capacity.
func (r *Registry) Capacity() int {
	return r.capacity
}

// TalkerStreams builds a registry of n talker streams. Stream i gets the id
// station || uint16(i) and the destination base with i added to its last octet.
func TalkerStreams(station MAC, n int, base MAC) (*Registry, error) {
	r := NewRegistry(n)
	for i := 0; i < n; i++ {
		var id ID
		copy(id[:6], station[:])
		id[6] = byte(i >> 8)
		id[7] = byte(i)
		if _, err := r.Add(id, base.Offset(i)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
