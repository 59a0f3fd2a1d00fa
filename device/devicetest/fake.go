// Package devicetest provides an in-memory device.Device for tests.
package devicetest

import (
	"sync"

	"github.com/opd-ai/avbstream/device"
)

// Sent is a copy of one transmitted frame.
type Sent struct {
	Frame  []byte
	Attime uint64
	Queue  int
}

// Fake is a device.Device that records transmitted frames. Packets stay in
// its ring until Clean, which completes up to CompletePerClean of them
// (all when zero).
type Fake struct {
	mu sync.Mutex

	PageSize         int
	RingSize         int
	CompletePerClean int

	// FullCount makes the next FullCount Xmit calls return ErrQueueFull.
	FullCount int
	// XmitErr, when set, is returned by every Xmit.
	XmitErr error
	// Clock is returned by Wallclock.
	Clock uint64

	ring      []*device.Packet
	sent      []Sent
	pages     int
	freed     int
	bandwidth [][4]int
	closed    bool
}

// New returns a fake with a 4096 byte page and a 16 entry ring.
func New() *Fake {
	return &Fake{PageSize: 4096, RingSize: 16}
}

// AllocPage implements device.Device.
func (f *Fake) AllocPage() (*device.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, device.ErrClosed
	}
	f.pages++
	return &device.Page{Mem: make([]byte, f.PageSize)}, nil
}

// FreePage implements device.Device.
func (f *Fake) FreePage(*device.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed++
	return nil
}

// Xmit implements device.Device.
func (f *Fake) Xmit(queue int, p *device.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.XmitErr != nil {
		return f.XmitErr
	}
	if f.FullCount > 0 {
		f.FullCount--
		return device.ErrQueueFull
	}
	if f.RingSize > 0 && len(f.ring) >= f.RingSize {
		return device.ErrQueueFull
	}
	f.ring = append(f.ring, p)
	f.sent = append(f.sent, Sent{
		Frame:  append([]byte(nil), p.Frame()...),
		Attime: p.Attime,
		Queue:  queue,
	})
	return nil
}

// Clean implements device.Device.
func (f *Fake) Clean(int) []*device.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.ring)
	if f.CompletePerClean > 0 && f.CompletePerClean < n {
		n = f.CompletePerClean
	}
	done := append([]*device.Packet(nil), f.ring[:n]...)
	f.ring = append(f.ring[:0], f.ring[n:]...)
	return done
}

// SetClassBandwidth implements device.Device.
func (f *Fake) SetClassBandwidth(classA, classB, frameA, frameB int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bandwidth = append(f.bandwidth, [4]int{classA, classB, frameA, frameB})
	return nil
}

// Wallclock implements device.Device.
func (f *Fake) Wallclock() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Clock, nil
}

// Close implements device.Device.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Sent returns copies of every transmitted frame in order.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Pending returns the number of packets still in the ring.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ring)
}

// PagesFreed returns how many pages were returned.
func (f *Fake) PagesFreed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freed
}

// Bandwidth returns the SetClassBandwidth calls in order.
func (f *Fake) Bandwidth() [][4]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][4]int(nil), f.bandwidth...)
}
