package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/avtp"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/stream"
)

// readBufferSize holds any frame up to the tagged Ethernet maximum.
const readBufferSize = limits.MaxFrameSize

// Discard reasons reported to metrics.
const (
	reasonNotAVTP   = "not_avtp"
	reasonForeign   = "foreign_stream"
	reasonMalformed = "malformed"
)

// Demux spawns and supervises one consumer per accepted stream.
type Demux struct {
	registry *stream.Registry
	res      Reserver
	open     CaptureOpener
	sinks    SinkFactory
	metrics  *metrics.Listener
	domain   msrp.Domain
	session  uuid.UUID
	log      *logrus.Entry

	mu        sync.Mutex
	consumers map[stream.ID]*consumer
	stopping  atomic.Bool
	wg        sync.WaitGroup
}

type consumer struct {
	desc    *stream.Descriptor
	capture Capture
	sink    Sink
	log     *logrus.Entry
}

// Option configures a Demux.
type Option func(*Demux)

// WithDomain sets the SR class domain registered before polling. The default
// is class A on VLAN 2.
func WithDomain(dom msrp.Domain) Option {
	return func(d *Demux) {
		d.domain = dom
	}
}

// NewDemux creates a demux over the accepted stream registry.
func NewDemux(registry *stream.Registry, res Reserver, open CaptureOpener, sinks SinkFactory, m *metrics.Listener, opts ...Option) (*Demux, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, ErrNoStreams
	}
	session := uuid.New()
	d := &Demux{
		registry:  registry,
		res:       res,
		open:      open,
		sinks:     sinks,
		metrics:   m,
		domain:    msrp.DefaultDomain,
		session:   session,
		log:       logrus.WithField("session", session.String()),
		consumers: make(map[stream.ID]*consumer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Session returns the id tagging this demux's log lines.
func (d *Demux) Session() uuid.UUID {
	return d.session
}

// Run registers the SR class domain, joins its VLAN and then polls for talker
// advertisements until ctx is done, spawning a consumer for every claimed
// stream. A failing poll ends the loop with its error.
func (d *Demux) Run(ctx context.Context) error {
	log := d.log.WithField("function", "Demux.Run")

	if err := d.res.RegisterDomain(d.domain.Class, d.domain.Priority, d.domain.VID); err != nil {
		return fmt.Errorf("register domain: %w", err)
	}
	if err := d.res.JoinVLAN(); err != nil {
		return fmt.Errorf("join vlan: %w", err)
	}
	log.WithFields(logrus.Fields{
		"accepted": d.registry.Len(),
		"vid":      d.domain.VID,
	}).Info("Awaiting talker advertisements")

	for {
		desc, err := d.res.PollTalkerAdvertisement(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				log.Info("Control socket closed")
			} else {
				log.WithField("error", err.Error()).Error("Poll failed")
			}
			return err
		}
		if desc == nil {
			continue
		}
		if err := d.Spawn(desc); err != nil {
			log.WithFields(logrus.Fields{
				"stream_id": desc.ID.String(),
				"error":     err.Error(),
			}).Error("Failed to start consumer")
		}
	}
}

// Spawn starts the consumer for desc: it declares the listener ready, opens
// the sink and the capture, and starts the read loop. desc must have been
// claimed from the registry. If the consumer cannot be created the claim is
// released so a later advertisement can retry, and a ready declaration that
// was already sent is withdrawn.
func (d *Demux) Spawn(desc *stream.Descriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.consumers[desc.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, desc.ID)
	}
	if !desc.Spawned() {
		return fmt.Errorf("%w: %s", ErrNotClaimed, desc.ID)
	}
	if d.stopping.Load() {
		d.registry.Release(desc.ID)
		return ErrStopped
	}

	log := d.log.WithFields(logrus.Fields{
		"function":  "consumer",
		"stream_id": desc.ID.String(),
		"index":     desc.Index,
	})

	if err := d.res.SendReady(desc.ID); err != nil {
		d.registry.Release(desc.ID)
		return fmt.Errorf("send ready: %w", err)
	}

	sink, err := d.sinks(desc)
	if err != nil {
		d.abandon(desc, log)
		return fmt.Errorf("open sink: %w", err)
	}

	capture, err := d.open(d.registry.Destinations())
	if err != nil {
		_ = sink.Close()
		d.abandon(desc, log)
		return fmt.Errorf("open capture: %w", err)
	}

	c := &consumer{desc: desc, capture: capture, sink: sink, log: log}
	d.consumers[desc.ID] = c
	d.metrics.ConsumerStarted()

	d.wg.Add(1)
	go d.consume(c)

	log.Info("Consumer started")
	return nil
}

// abandon withdraws the ready declaration of a stream whose consumer could
// not be created and releases its claim.
func (d *Demux) abandon(desc *stream.Descriptor, log *logrus.Entry) {
	if err := d.res.WithdrawReady(desc.ID); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to withdraw ready declaration")
	}
	d.registry.Release(desc.ID)
}

// consume is the blocking read loop of one consumer. It ends when the
// capture handle is closed.
func (d *Demux) consume(c *consumer) {
	defer d.wg.Done()
	defer d.metrics.ConsumerStopped()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.capture.ReadPacket(buf)
		if err != nil {
			if d.stopping.Load() {
				c.log.Debug("Capture closed")
			} else {
				c.log.WithField("error", err.Error()).Error("Capture read failed")
			}
			return
		}
		d.handleFrame(c, buf[:n])
	}
}

// handleFrame re-validates the stream id of a frame that passed the shared
// destination filter and forwards its samples. It reports whether the frame
// was accepted.
func (d *Demux) handleFrame(c *consumer, frame []byte) bool {
	idText := c.desc.ID.String()

	id, err := avtp.PeekStreamID(frame)
	if err != nil {
		d.metrics.FrameDiscarded(idText, reasonNotAVTP)
		return false
	}
	if id != c.desc.ID {
		d.metrics.FrameDiscarded(idText, reasonForeign)
		return false
	}
	pkt, err := avtp.ParseFrame(frame)
	if err != nil {
		d.metrics.FrameDiscarded(idText, reasonMalformed)
		return false
	}

	count := c.desc.CountReceived()
	d.metrics.FrameReceived(idText)
	if count == 1 {
		c.log.Info("First frame received")
	}

	if err := c.sink.WriteSamples(pkt.Samples()); err != nil {
		c.log.WithField("error", err.Error()).Warn("Sink write failed")
	}
	return true
}

// Stop unblocks and joins every consumer, closes the sinks and withdraws the
// listener declaration of every spawned stream. It is safe to call once the
// control loop has returned.
func (d *Demux) Stop() error {
	if !d.stopping.CompareAndSwap(false, true) {
		return nil
	}

	d.mu.Lock()
	consumers := make([]*consumer, 0, len(d.consumers))
	for _, c := range d.consumers {
		consumers = append(consumers, c)
	}
	d.mu.Unlock()

	var errs []error
	for _, c := range consumers {
		if err := c.capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close capture %s: %w", c.desc.ID, err))
		}
	}
	d.wg.Wait()

	for _, c := range consumers {
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", c.desc.ID, err))
		}
		c.log.WithField("received", c.desc.Received()).Info("Consumer stopped")
	}

	for _, desc := range d.registry.Spawned() {
		if err := d.res.SendLeave(desc.ID); err != nil {
			errs = append(errs, fmt.Errorf("send leave %s: %w", desc.ID, err))
		}
	}

	d.log.WithField("function", "Demux.Stop").Info("Listener stopped")
	return errors.Join(errs...)
}
