package talker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/audio"
	"github.com/opd-ai/avbstream/clock"
	"github.com/opd-ai/avbstream/device"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/pool"
	"github.com/opd-ai/avbstream/stream"
)

// Timing defaults for SR class A.
const (
	// DefaultInterval is the class A observation interval.
	DefaultInterval = 125 * time.Microsecond
	// DefaultXmitDelay is the lead time of the first launch time over the
	// local clock.
	DefaultXmitDelay = 200 * time.Millisecond
	// DefaultRenderDelay is the lead time of the first presentation time over
	// network time.
	DefaultRenderDelay = DefaultXmitDelay + 2*time.Millisecond
	// DefaultNice is the nice value of the transmit thread.
	DefaultNice = -20
)

// Config holds the scheduler timing.
type Config struct {
	Interval        time.Duration
	XmitDelay       time.Duration
	RenderDelay     time.Duration
	SamplesPerFrame int
	Channels        int
	Nice            int
}

// DefaultConfig returns the class A defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		XmitDelay:       DefaultXmitDelay,
		RenderDelay:     DefaultRenderDelay,
		SamplesPerFrame: limits.SamplesPerFrame,
		Channels:        limits.Channels,
		Nice:            DefaultNice,
	}
}

// tick is the per-packet state prepared for the next submission. It is only
// committed once the hardware accepted the buffer, so a full queue retries
// the identical tick.
type tick struct {
	ready     bool
	pos       int
	attime    uint64
	timestamp uint32
	samples   []int32
}

// Scheduler round-robins the reserved streams into the transmit queue. All
// of its methods must be called from one goroutine.
type Scheduler struct {
	cfg     Config
	pool    *pool.Pool
	dev     device.Device
	streams []*stream.Descriptor
	src     audio.Source
	clk     clock.Source
	metrics *metrics.Talker

	lastPos     int
	lastTime    uint64
	timeStamp   uint64
	packetCount uint64
	dbc         uint8
	pending     tick
}

// NewScheduler creates a scheduler over the reserved streams.
func NewScheduler(cfg Config, p *pool.Pool, dev device.Device, streams []*stream.Descriptor, src audio.Source, clk clock.Source, m *metrics.Talker) (*Scheduler, error) {
	if err := limits.ValidateStreamCount(len(streams)); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid interval %s", cfg.Interval)
	}
	if src.Channels() != cfg.Channels {
		return nil, fmt.Errorf("%w: source has %d, frame has %d", ErrChannelMismatch, src.Channels(), cfg.Channels)
	}

	return &Scheduler{
		cfg:     cfg,
		pool:    p,
		dev:     dev,
		streams: streams,
		src:     src,
		clk:     clk,
		metrics: m,
		lastPos: -1,
		pending: tick{samples: make([]int32, cfg.SamplesPerFrame*cfg.Channels)},
	}, nil
}

// Start anchors the launch and presentation bases on the current clocks.
func (s *Scheduler) Start() error {
	td, err := s.clk.TimeData()
	if err != nil {
		return fmt.Errorf("clock sync: %w", err)
	}
	nowLocal, err := s.dev.Wallclock()
	if err != nil {
		return fmt.Errorf("wallclock: %w", err)
	}
	nowNetwork := td.NetworkTime(nowLocal)

	s.lastTime = nowLocal + uint64(s.cfg.XmitDelay)
	s.timeStamp = nowNetwork + uint64(s.cfg.RenderDelay)

	logrus.WithFields(logrus.Fields{
		"function":     "Scheduler.Start",
		"now_local":    nowLocal,
		"now_network":  nowNetwork,
		"first_launch": s.lastTime,
		"streams":      len(s.streams),
	}).Info("Transmit bases anchored")
	return nil
}

// Step runs one iteration: acquire a buffer, stamp the pending tick into it
// and submit. It returns an error only for fatal transmit failures.
func (s *Scheduler) Step() error {
	b := s.pool.TryAcquire()
	if b == nil {
		s.metrics.BufferStarved()
		s.reclaim()
		return nil
	}

	if !s.pending.ready {
		if err := s.prepare(); err != nil {
			_ = s.pool.Release(b)
			return err
		}
	}
	s.stamp(b)

	err := s.pool.Submit(b)
	switch {
	case err == nil:
		s.commit()
		return nil
	case errors.Is(err, device.ErrQueueFull):
		s.metrics.QueueWasFull()
		s.reclaim()
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"function":  "Scheduler.Step",
			"stream_id": s.streams[s.pending.pos].ID.String(),
			"error":     err.Error(),
		}).Error("Transmit failed")
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
}

// prepare computes the next tick from the round-robin position and bases.
func (s *Scheduler) prepare() error {
	n := len(s.streams)
	pos := (s.lastPos + 1) % n
	offset := uint64(s.cfg.Interval) / uint64(n) * uint64(pos)

	if err := s.src.Fill(s.pending.samples, s.cfg.SamplesPerFrame); err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	s.pending.pos = pos
	s.pending.attime = s.lastTime + offset
	s.pending.timestamp = uint32(s.timeStamp + offset)
	s.pending.ready = true
	return nil
}

func (s *Scheduler) stamp(b *pool.Buffer) {
	d := s.streams[s.pending.pos]
	f := b.Frame()

	f.SetDestination(d.Destination)
	f.SetStreamID(d.ID)
	f.SetTimestamp(s.pending.timestamp)
	f.SetSequence(uint8(s.packetCount))
	f.SetTimestampValid((s.packetCount+1)%4 != 0)
	f.SetDBC(s.dbc)
	for i, v := range s.pending.samples {
		f.SetSample(i, v)
	}
	b.SetAttime(s.pending.attime)
}

// commit advances the round-robin state after a successful submission. The
// bases move by one interval only once every stream was served.
func (s *Scheduler) commit() {
	s.lastPos = s.pending.pos
	if s.lastPos == len(s.streams)-1 {
		s.lastTime += uint64(s.cfg.Interval)
		s.timeStamp += uint64(s.cfg.Interval)
	}
	s.packetCount++
	s.dbc += uint8(s.cfg.SamplesPerFrame * s.cfg.Channels)
	s.pending.ready = false
	s.metrics.PacketSent()
}

func (s *Scheduler) reclaim() {
	if n := s.pool.Reclaim(); n > 0 {
		s.metrics.BuffersReclaimed(n)
	}
}

// PacketsSent returns the number of frames accepted by the hardware.
func (s *Scheduler) PacketsSent() uint64 {
	return s.packetCount
}

// Run anchors the bases and transmits until ctx is cancelled or a fatal
// transmit error occurs. Cancellation is checked once per iteration and is
// not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := raisePriority(s.cfg.Nice); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Run",
			"nice":     s.cfg.Nice,
			"error":    err.Error(),
		}).Warn("Running transmit thread at normal priority")
	}

	if err := s.Start(); err != nil {
		return err
	}

	for ctx.Err() == nil {
		if err := s.Step(); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Scheduler.Run",
		"packets":  s.packetCount,
	}).Info("Transmit loop halted")
	return nil
}
