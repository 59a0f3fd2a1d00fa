// Package device defines the boundary to the NIC driver used by the talker.
//
// The driver owns queue initialization, DMA page allocation and the actual
// transmit and clean primitives. The talker only sees the Device interface:
// it allocates pages once, hands packets to a transmit queue with Xmit and
// collects transmitted packets back with Clean. A Packet belongs either to
// the caller or to the driver, never to both.
package device

import "errors"

// ErrQueueFull is returned by Xmit when the transmit ring has no free
// descriptor. It is transient: the caller keeps the packet and retries after
// cleaning the queue.
var ErrQueueFull = errors.New("transmit queue full")

// ErrClosed is returned by operations on a closed device.
var ErrClosed = errors.New("device closed")

// Page is a DMA-capable memory region handed out by the driver.
type Page struct {
	// Mem is the mapped virtual view of the page.
	Mem []byte
	// PhysAddr is the bus address of Mem[0].
	PhysAddr uint64
}

// Packet is one transmit descriptor backed by a slice of a Page.
type Packet struct {
	// Index identifies the packet within its owner's pool.
	Index int
	// Attime is the local launch time in nanoseconds.
	Attime uint64
	// Offset is the position of Data within its page.
	Offset int
	// Data is the frame buffer. Len bytes of it are transmitted.
	Data []byte
	// Len is the frame length.
	Len int
}

// Frame returns the bytes to transmit.
func (p *Packet) Frame() []byte {
	return p.Data[:p.Len]
}

// Device is the narrow driver interface consumed by the packet pool and the
// transmit scheduler.
type Device interface {
	// AllocPage allocates one DMA page.
	AllocPage() (*Page, error)
	// FreePage returns a page to the driver.
	FreePage(page *Page) error
	// Xmit queues p on the transmit queue. ErrQueueFull is transient; any
	// other error ends the transmit session.
	Xmit(queue int, p *Packet) error
	// Clean returns the packets the hardware finished transmitting.
	Clean(queue int) []*Packet
	// SetClassBandwidth programs the credit based shaper for SR classes A and
	// B. All zeros disables shaping.
	SetClassBandwidth(classA, classB, frameSizeA, frameSizeB int) error
	// Wallclock returns the NIC's local clock in nanoseconds.
	Wallclock() (uint64, error)
	// Close detaches from the driver.
	Close() error
}
