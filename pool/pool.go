// Package pool implements the talker's pool of pre-templated transmit buffers.
//
// The pool slices one driver page into fixed-size slots, stamps the static
// header stack into every slot once, and then cycles the slots through
//
//	Free -> Staging -> InFlight -> Completed -> Free
//
// Staging is the short window in which the scheduler stamps per-packet fields.
// A buffer is on the free list or in the hardware queue, never both.
//
// The pool has no lock. Every method must be called from the single transmit
// goroutine that owns it.
package pool

import (
	"errors"
	"fmt"

	"github.com/opd-ai/avbstream/avtp"
	"github.com/opd-ai/avbstream/device"
	"github.com/opd-ai/avbstream/limits"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a buffer.
type State uint8

const (
	// StateFree means the buffer is on the free list.
	StateFree State = iota
	// StateStaging means the scheduler popped the buffer and is stamping it.
	StateStaging
	// StateInFlight means the buffer is queued in hardware.
	StateInFlight
	// StateCompleted means hardware returned the buffer and it awaits scrubbing.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateStaging:
		return "staging"
	case StateInFlight:
		return "in-flight"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Buffer is one slot of the pool.
type Buffer struct {
	packet *device.Packet
	state  State
	next   *Buffer
}

// Frame returns the slot as an AVTP frame.
func (b *Buffer) Frame() avtp.Frame {
	return avtp.Frame(b.packet.Frame())
}

// Packet returns the driver descriptor.
func (b *Buffer) Packet() *device.Packet {
	return b.packet
}

// State returns the lifecycle state.
func (b *Buffer) State() State {
	return b.state
}

// SetAttime sets the local launch time.
func (b *Buffer) SetAttime(t uint64) {
	b.packet.Attime = t
}

// Config configures a pool.
type Config struct {
	// Queue is the transmit queue index (0 for class A).
	Queue int
	// Template is the pre-stamped frame copied into every slot.
	Template []byte
}

// Pool is the set of transmit buffers carved out of one driver page.
type Pool struct {
	dev      device.Device
	queue    int
	page     *device.Page
	template []byte
	buffers  []*Buffer
	free     *Buffer
	nfree    int
	inFlight int
	closed   bool
}

// New allocates a page from dev and slices it into template-sized slots.
func New(dev device.Device, cfg Config) (*Pool, error) {
	frameLen := len(cfg.Template)
	if err := limits.ValidateFrameSize(frameLen); err != nil {
		return nil, err
	}

	page, err := dev.AllocPage()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "pool.New",
			"error":    err.Error(),
		}).Error("DMA page allocation failed")
		return nil, fmt.Errorf("allocate page: %w", err)
	}

	slots := len(page.Mem) / frameLen
	if slots == 0 {
		_ = dev.FreePage(page)
		return nil, fmt.Errorf("%w: page %d bytes, frame %d bytes", ErrNoMemory, len(page.Mem), frameLen)
	}

	p := &Pool{
		dev:      dev,
		queue:    cfg.Queue,
		page:     page,
		template: append([]byte(nil), cfg.Template...),
		buffers:  make([]*Buffer, slots),
	}

	for i := 0; i < slots; i++ {
		off := i * frameLen
		data := page.Mem[off : off+frameLen : off+frameLen]
		copy(data, p.template)
		b := &Buffer{
			packet: &device.Packet{Index: i, Offset: off, Data: data, Len: frameLen},
			state:  StateFree,
		}
		p.buffers[i] = b
		p.push(b)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "pool.New",
		"slots":     slots,
		"frame_len": frameLen,
		"page_size": len(page.Mem),
	}).Info("Transmit pool ready")

	return p, nil
}

func (p *Pool) push(b *Buffer) {
	b.state = StateFree
	b.next = p.free
	p.free = b
	p.nfree++
}

// TryAcquire pops a buffer from the free list. It returns nil when the list
// is empty; the caller then calls Reclaim and tries again on its next pass.
func (p *Pool) TryAcquire() *Buffer {
	b := p.free
	if b == nil || p.closed {
		return nil
	}
	p.free = b.next
	b.next = nil
	p.nfree--
	b.state = StateStaging
	return b
}

// Release puts a staging buffer back on the free list without transmitting
// it. Its stamped content is kept so the same tick can be resubmitted.
func (p *Pool) Release(b *Buffer) error {
	if b.state != StateStaging {
		return fmt.Errorf("%w: buffer %d is %s", ErrNotOwned, b.packet.Index, b.state)
	}
	p.push(b)
	return nil
}

// Submit hands a staging buffer to the hardware queue. On device.ErrQueueFull
// the buffer goes back to the free list and the error is returned unchanged
// so the caller can retry the same tick.
func (p *Pool) Submit(b *Buffer) error {
	if p.closed {
		return ErrPoolClosed
	}
	if b.state != StateStaging {
		return fmt.Errorf("%w: buffer %d is %s", ErrNotOwned, b.packet.Index, b.state)
	}

	err := p.dev.Xmit(p.queue, b.packet)
	if err == nil {
		b.state = StateInFlight
		p.inFlight++
		return nil
	}
	if errors.Is(err, device.ErrQueueFull) {
		p.push(b)
	}
	return err
}

// Reclaim drains completed packets from the hardware queue back into the
// free list, scrubbing the per-stream fields on the way. It returns the
// number of buffers reclaimed.
func (p *Pool) Reclaim() int {
	cleaned := p.dev.Clean(p.queue)
	n := 0
	for _, pkt := range cleaned {
		if pkt == nil || pkt.Index < 0 || pkt.Index >= len(p.buffers) {
			continue
		}
		b := p.buffers[pkt.Index]
		if b.packet != pkt || b.state != StateInFlight {
			logrus.WithFields(logrus.Fields{
				"function": "Pool.Reclaim",
				"index":    pkt.Index,
				"state":    b.state.String(),
			}).Warn("Driver returned a packet the pool did not submit")
			continue
		}
		b.state = StateCompleted
		p.inFlight--
		p.scrub(b)
		p.push(b)
		n++
	}
	return n
}

// scrub restores the slot to the template so no stream id or destination of
// its previous use survives.
func (p *Pool) scrub(b *Buffer) {
	copy(b.packet.Data, p.template)
	b.packet.Attime = 0
}

// Free returns the number of buffers on the free list.
func (p *Pool) Free() int {
	return p.nfree
}

// InFlight returns the number of buffers owned by the hardware queue.
func (p *Pool) InFlight() int {
	return p.inFlight
}

// Size returns the total number of slots.
func (p *Pool) Size() int {
	return len(p.buffers)
}

// Close reclaims whatever the hardware has finished with and returns the
// page to the driver. Buffers still in flight are abandoned with the page.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.Reclaim()
	p.closed = true
	p.free = nil
	p.nfree = 0

	logrus.WithFields(logrus.Fields{
		"function":  "Pool.Close",
		"in_flight": p.inFlight,
	}).Info("Releasing transmit pool")

	if err := p.dev.FreePage(p.page); err != nil {
		return fmt.Errorf("free page: %w", err)
	}
	return nil
}
