package listener

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/avbstream/avtp"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/stream"
)

var (
	talkerStation = stream.MAC{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55}
	streamA       = stream.ID{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55, 0x00, 0x00}
	streamB       = stream.ID{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55, 0x00, 0x01}
)

type fakeCapture struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	dests     []stream.MAC
}

func (c *fakeCapture) ReadPacket(buf []byte) (int, error) {
	select {
	case f := <-c.frames:
		return copy(buf, f), nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *fakeCapture) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type captureSet struct {
	mu       sync.Mutex
	captures []*fakeCapture
}

func (s *captureSet) open(dests []stream.MAC) (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &fakeCapture{frames: make(chan []byte, 8), closed: make(chan struct{}), dests: dests}
	s.captures = append(s.captures, c)
	return c, nil
}

func (s *captureSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

func (s *captureSet) get(i int) *fakeCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures[i]
}

type fakeSink struct {
	mu     sync.Mutex
	writes [][]int32
	closed bool
}

func (s *fakeSink) WriteSamples(samples []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]int32(nil), samples...))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type sinkSet struct {
	mu    sync.Mutex
	sinks map[stream.ID]*fakeSink
}

func (s *sinkSet) factory(d *stream.Descriptor) (Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sinks == nil {
		s.sinks = make(map[stream.ID]*fakeSink)
	}
	sink := &fakeSink{}
	s.sinks[d.ID] = sink
	return sink, nil
}

type mockReserver struct {
	mu        sync.Mutex
	adverts   chan *stream.Descriptor
	domains   []msrp.Domain
	joined    int
	ready     []stream.ID
	withdrawn []stream.ID
	leave     []stream.ID
	readyErr  error
}

func (m *mockReserver) RegisterDomain(class, priority uint8, vid uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains = append(m.domains, msrp.Domain{Class: class, Priority: priority, VID: vid})
	return nil
}

func (m *mockReserver) JoinVLAN() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined++
	return nil
}

func (m *mockReserver) WithdrawReady(id stream.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawn = append(m.withdrawn, id)
	return nil
}

func (m *mockReserver) PollTalkerAdvertisement(ctx context.Context) (*stream.Descriptor, error) {
	select {
	case d := <-m.adverts:
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockReserver) SendReady(id stream.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readyErr != nil {
		return m.readyErr
	}
	m.ready = append(m.ready, id)
	return nil
}

func (m *mockReserver) SendLeave(id stream.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave = append(m.leave, id)
	return nil
}

func acceptedRegistry(t *testing.T) *stream.Registry {
	t.Helper()
	reg := stream.NewRegistry(2)
	_, err := reg.Add(streamA, stream.DefaultDestination)
	require.NoError(t, err)
	_, err = reg.Add(streamB, stream.DefaultDestination.Offset(1))
	require.NoError(t, err)
	return reg
}

func testFrame(t *testing.T, id stream.ID, dest stream.MAC, value int32) []byte {
	t.Helper()
	tmpl, err := avtp.Template(avtp.TemplateConfig{
		Source:      talkerStation,
		Destination: dest,
		VLAN:        avtp.VLANTag{Priority: 3, VID: 2},
		Samples:     12,
	})
	require.NoError(t, err)
	f := avtp.Frame(tmpl)
	f.SetStreamID(id)
	for i := 0; i < 12; i++ {
		f.SetSample(i, value)
	}
	return tmpl
}

func TestConsumerDiscardsForeignStream(t *testing.T) {
	reg := acceptedRegistry(t)
	res := &mockReserver{}
	caps := &captureSet{}
	sinks := &sinkSet{}

	d, err := NewDemux(reg, res, caps.open, sinks.factory, nil)
	require.NoError(t, err)

	descA, ok := reg.Claim(streamA)
	require.True(t, ok)
	require.NoError(t, d.Spawn(descA))
	require.Equal(t, 1, caps.count())

	c := caps.get(0)
	assert.Equal(t, reg.Destinations(), c.dests)

	// Passes the shared destination filter but belongs to stream B.
	c.frames <- testFrame(t, streamB, stream.DefaultDestination, 0x11111100)
	c.frames <- []byte{0x01, 0x02, 0x03}
	c.frames <- testFrame(t, streamA, stream.DefaultDestination, 0x22222200)

	require.Eventually(t, func() bool { return descA.Received() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Stop())

	descB, _ := reg.Lookup(streamB)
	assert.Zero(t, descB.Received())
	assert.EqualValues(t, 1, descA.Received())

	sink := sinks.sinks[streamA]
	require.Len(t, sink.writes, 1)
	assert.Len(t, sink.writes[0], 12)
	assert.Equal(t, int32(0x22222200), sink.writes[0][0])
	assert.True(t, sink.closed)

	assert.Equal(t, []stream.ID{streamA}, res.ready)
	assert.Equal(t, []stream.ID{streamA}, res.leave)
}

func TestSpawnTwiceIsRejected(t *testing.T) {
	reg := acceptedRegistry(t)
	caps := &captureSet{}
	d, err := NewDemux(reg, &mockReserver{}, caps.open, (&sinkSet{}).factory, nil)
	require.NoError(t, err)

	desc, ok := reg.Claim(streamA)
	require.True(t, ok)
	require.NoError(t, d.Spawn(desc))
	assert.ErrorIs(t, d.Spawn(desc), ErrAlreadyRunning)
	assert.Equal(t, 1, caps.count())

	unclaimed, _ := reg.Lookup(streamB)
	assert.ErrorIs(t, d.Spawn(unclaimed), ErrNotClaimed)
	assert.Equal(t, 1, caps.count())

	require.NoError(t, d.Stop())

	late, ok := reg.Claim(streamB)
	require.True(t, ok)
	assert.ErrorIs(t, d.Spawn(late), ErrStopped)
	assert.False(t, late.Spawned(), "claim released when stopped")
}

// flakyOpener fails the first fails calls and then opens fake captures.
type flakyOpener struct {
	captureSet
	fails int
}

func (o *flakyOpener) open(dests []stream.MAC) (Capture, error) {
	o.mu.Lock()
	if o.fails > 0 {
		o.fails--
		o.mu.Unlock()
		return nil, errors.New("no capture")
	}
	o.mu.Unlock()
	return o.captureSet.open(dests)
}

func TestSpawnFailureReleasesClaim(t *testing.T) {
	reg := acceptedRegistry(t)
	res := &mockReserver{}
	opener := &flakyOpener{fails: 1}
	sinks := &sinkSet{}
	d, err := NewDemux(reg, res, opener.open, sinks.factory, nil)
	require.NoError(t, err)

	desc, ok := reg.Claim(streamA)
	require.True(t, ok)
	assert.Error(t, d.Spawn(desc))
	assert.False(t, desc.Spawned())
	assert.Empty(t, reg.Spawned())
	assert.True(t, sinks.sinks[streamA].closed, "sink opened before the capture is closed again")
	assert.Equal(t, []stream.ID{streamA}, res.withdrawn)

	again, ok := reg.Claim(streamA)
	require.True(t, ok, "a later advertisement can claim the stream again")
	require.NoError(t, d.Spawn(again))
	assert.Equal(t, 1, opener.count())

	require.NoError(t, d.Stop())
	assert.Equal(t, []stream.ID{streamA, streamA}, res.ready)
	assert.Equal(t, []stream.ID{streamA}, res.leave)
}

func TestSpawnReadyFailureReleasesClaim(t *testing.T) {
	reg := acceptedRegistry(t)
	res := &mockReserver{readyErr: errors.New("daemon gone")}
	caps := &captureSet{}
	d, err := NewDemux(reg, res, caps.open, (&sinkSet{}).factory, nil)
	require.NoError(t, err)

	desc, ok := reg.Claim(streamB)
	require.True(t, ok)
	assert.Error(t, d.Spawn(desc))
	assert.False(t, desc.Spawned())
	assert.Zero(t, caps.count())
	assert.Empty(t, res.withdrawn, "nothing to withdraw when ready was never sent")

	require.NoError(t, d.Stop())
	assert.Empty(t, res.leave)
}

func TestRunRegistersDomainFirst(t *testing.T) {
	reg := acceptedRegistry(t)
	res := &mockReserver{adverts: make(chan *stream.Descriptor)}
	dom := msrp.Domain{Class: msrp.ClassA, Priority: 2, VID: 5}
	d, err := NewDemux(reg, res, (&captureSet{}).open, (&sinkSet{}).factory, nil, WithDomain(dom))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, []msrp.Domain{dom}, res.domains)
	assert.Equal(t, 1, res.joined)
}

func TestRunSpawnsClaimedStreams(t *testing.T) {
	reg := acceptedRegistry(t)
	res := &mockReserver{adverts: make(chan *stream.Descriptor, 4)}
	caps := &captureSet{}
	d, err := NewDemux(reg, res, caps.open, (&sinkSet{}).factory, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	descB, _ := reg.Claim(streamB)
	res.adverts <- nil
	res.adverts <- descB

	require.Eventually(t, func() bool { return caps.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	require.NoError(t, d.Stop())
	assert.Equal(t, []stream.ID{streamB}, res.leave)
}

func TestNewDemuxNeedsStreams(t *testing.T) {
	_, err := NewDemux(stream.NewRegistry(2), &mockReserver{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoStreams)
}

// daemonRead reads one control datagram with padding removed.
func daemonRead(t *testing.T, conn net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, 1500, n)
	return strings.TrimRight(string(buf[:n]), "\x00")
}

func daemonSend(t *testing.T, conn net.PacketConn, to net.Addr, msg string) {
	t.Helper()
	buf := make([]byte, 1500)
	copy(buf, msg)
	_, err := conn.WriteTo(buf, to)
	require.NoError(t, err)
}

func TestJoinScenarioOverLoopback(t *testing.T) {
	daemon, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer daemon.Close()
	local, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	reg := acceptedRegistry(t)
	client := msrp.NewClient(local, daemon.LocalAddr(), reg)
	caps := &captureSet{}
	d, err := NewDemux(reg, client, caps.open, (&sinkSet{}).factory, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Equal(t, "S+D:C=6,P=3,V=0002", daemonRead(t, daemon))
	assert.Equal(t, "V++:I=0002", daemonRead(t, daemon))

	// Unknown talker: nothing happens.
	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=0011223344550000")
	// a0:36:9f:4c:92:55:00:01 twice: one consumer.
	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=a0369f4c92550001")
	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=a0369f4c92550001")

	assert.Equal(t, "S+L:L=a0369f4c92550001,D=2", daemonRead(t, daemon))

	// The duplicate was processed once the client answers a later message.
	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=a0369f4c92550000")
	assert.Equal(t, "S+L:L=a0369f4c92550000,D=2", daemonRead(t, daemon))

	assert.Equal(t, 2, caps.count())
	spawned := reg.Spawned()
	assert.Len(t, spawned, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	require.NoError(t, d.Stop())
	leaves := []string{daemonRead(t, daemon), daemonRead(t, daemon)}
	assert.ElementsMatch(t, []string{
		"S-L:L=a0369f4c92550000,D=3",
		"S-L:L=a0369f4c92550001,D=3",
	}, leaves)

	require.NoError(t, client.Disconnect())
	assert.Equal(t, "BYE", daemonRead(t, daemon))
}

func TestCaptureFailureRetriedOnNextJoin(t *testing.T) {
	daemon, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer daemon.Close()
	local, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	reg := acceptedRegistry(t)
	client := msrp.NewClient(local, daemon.LocalAddr(), reg)
	opener := &flakyOpener{fails: 1}
	d, err := NewDemux(reg, client, opener.open, (&sinkSet{}).factory, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Equal(t, "S+D:C=6,P=3,V=0002", daemonRead(t, daemon))
	assert.Equal(t, "V++:I=0002", daemonRead(t, daemon))

	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=a0369f4c92550000")
	assert.Equal(t, "S+L:L=a0369f4c92550000,D=2", daemonRead(t, daemon))
	assert.Equal(t, "S-L:L=a0369f4c92550000,D=3", daemonRead(t, daemon))

	daemonSend(t, daemon, local.LocalAddr(), "SJO T:S=a0369f4c92550000")
	assert.Equal(t, "S+L:L=a0369f4c92550000,D=2", daemonRead(t, daemon))
	require.Eventually(t, func() bool { return opener.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	require.NoError(t, d.Stop())
	assert.Equal(t, "S-L:L=a0369f4c92550000,D=3", daemonRead(t, daemon))
	require.NoError(t, client.Disconnect())
	assert.Equal(t, "BYE", daemonRead(t, daemon))
}

func TestWAVSinks(t *testing.T) {
	dir := t.TempDir()
	reg := acceptedRegistry(t)
	desc, _ := reg.Lookup(streamB)

	var copied fakeSink
	factory := TeeSinks(WAVSinks(dir, "out"), func(*stream.Descriptor) (Sink, error) { return &copied, nil })
	sink, err := factory(desc)
	require.NoError(t, err)

	require.NoError(t, sink.WriteSamples(make([]int32, 12)))
	require.NoError(t, sink.Close())

	info, err := os.Stat(filepath.Join(dir, "out_1.wav"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44))
	assert.Len(t, copied.writes, 1)
	assert.True(t, copied.closed)
}
