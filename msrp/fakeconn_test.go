package msrp

import (
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

var testServer = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultPort}

// fakeConn is an in-memory net.PacketConn standing in for the daemon socket.
type fakeConn struct {
	mu       sync.Mutex
	sent     [][]byte
	shortN   int
	writeErr error
	expired  chan struct{}

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		expired: make(chan struct{}),
		inbox:   make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) deliver(msg string) {
	buf := make([]byte, 1500)
	copy(buf, msg)
	f.inbox <- buf
}

// commands returns the sent datagrams with padding removed.
func (f *fakeConn) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		out[i] = strings.TrimRight(string(b), "\x00")
	}
	return out
}

func (f *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	f.mu.Lock()
	expired := f.expired
	f.mu.Unlock()

	select {
	case msg := <-f.inbox:
		return copy(p, msg), testServer, nil
	case <-expired:
		return 0, nil, os.ErrDeadlineExceeded
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.sent = append(f.sent, append([]byte(nil), p...))
	if f.shortN > 0 {
		return f.shortN, nil
	}
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (f *fakeConn) SetDeadline(t time.Time) error {
	return f.SetReadDeadline(t)
}

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.expired:
		if t.IsZero() {
			f.expired = make(chan struct{})
		}
	default:
		if !t.IsZero() {
			close(f.expired)
		}
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}
