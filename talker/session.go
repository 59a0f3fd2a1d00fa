package talker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/audio"
	"github.com/opd-ai/avbstream/avtp"
	"github.com/opd-ai/avbstream/clock"
	"github.com/opd-ai/avbstream/device"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/pool"
	"github.com/opd-ai/avbstream/stream"
)

// DefaultLatency is the accumulated latency advertised for each stream, in ns.
const DefaultLatency = 3900

// txQueue is the class A transmit queue.
const txQueue = 0

// classObservation is the class A observation interval in ns, the unit of the
// shaper's per-interval frame count.
const classObservation = 125000

// Reserver is the part of the reservation client a talker needs.
// *msrp.Client implements it.
type Reserver interface {
	RegisterDomain(class, priority uint8, vid uint16) error
	JoinVLAN() error
	Advertise(a msrp.Advertisement) error
	Unadvertise(a msrp.Advertisement) error
	AwaitListenerReady(ctx context.Context, id stream.ID) error
	Disconnect() error
}

// SessionConfig configures a talker session.
type SessionConfig struct {
	// Station is the talker's own link address; stream ids derive from it.
	Station stream.MAC
	// Destination is the multicast base address; stream i uses base+i.
	Destination stream.MAC
	Streams     int
	Domain      msrp.Domain
	Latency     int
	Scheduler   Config
}

// Session runs one talker from reservation to teardown.
type Session struct {
	cfg     SessionConfig
	res     Reserver
	dev     device.Device
	src     audio.Source
	clk     clock.Source
	metrics *metrics.Talker

	registry *stream.Registry
	reserved []*stream.Descriptor
}

// NewSession validates cfg and builds the talker's stream registry.
func NewSession(cfg SessionConfig, res Reserver, dev device.Device, src audio.Source, clk clock.Source, m *metrics.Talker) (*Session, error) {
	if err := limits.ValidateStreamCount(cfg.Streams); err != nil {
		return nil, err
	}
	registry, err := stream.TalkerStreams(cfg.Station, cfg.Streams, cfg.Destination)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		res:      res,
		dev:      dev,
		src:      src,
		clk:      clk,
		metrics:  m,
		registry: registry,
	}, nil
}

// Registry returns the talker's streams.
func (s *Session) Registry() *stream.Registry {
	return s.registry
}

// Reserved returns the streams whose advertisement succeeded.
func (s *Session) Reserved() []*stream.Descriptor {
	return s.reserved
}

func (s *Session) frameSamples() int {
	return s.cfg.Scheduler.SamplesPerFrame * s.cfg.Scheduler.Channels
}

func (s *Session) advertisement(d *stream.Descriptor) msrp.Advertisement {
	n := s.registry.Len()
	return msrp.Advertisement{
		StreamID:    d.ID,
		Destination: d.Destination,
		VID:         s.cfg.Domain.VID,
		// The daemon counts the payload without MAC header and tag.
		MaxFrameSize: avtp.FrameSize(s.frameSamples()) - 16,
		Intervals:    int(s.cfg.Scheduler.Interval) / classObservation * n,
		Priority:     s.cfg.Domain.Priority,
		Latency:      s.cfg.Latency,
	}
}

// Run reserves the streams, waits for a listener and transmits until ctx is
// cancelled. Teardown always unadvertises the reserved streams, disables the
// shaper, releases the pool and disconnects.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if derr := s.res.Disconnect(); derr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Session.Run",
				"error":    derr.Error(),
			}).Warn("Disconnect failed")
		}
	}()

	d := s.cfg.Domain
	if err := s.res.RegisterDomain(d.Class, d.Priority, d.VID); err != nil {
		return fmt.Errorf("register domain: %w", err)
	}
	if err := s.res.JoinVLAN(); err != nil {
		return fmt.Errorf("join vlan: %w", err)
	}

	n := s.registry.Len()
	frameLen := avtp.FrameSize(s.frameSamples())
	perInterval := classObservation / int(s.cfg.Scheduler.Interval) * n
	if err := s.dev.SetClassBandwidth(perInterval, 0, frameLen-22, 0); err != nil {
		return fmt.Errorf("set class bandwidth: %w", err)
	}
	defer func() {
		if berr := s.dev.SetClassBandwidth(0, 0, 0, 0); berr != nil {
			err = errors.Join(err, fmt.Errorf("disable class bandwidth: %w", berr))
		}
	}()

	tmpl, err := avtp.Template(avtp.TemplateConfig{
		Source:      s.cfg.Station,
		Destination: s.cfg.Destination,
		VLAN:        avtp.VLANTag{Priority: d.Priority, VID: d.VID},
		Samples:     s.frameSamples(),
	})
	if err != nil {
		return fmt.Errorf("frame template: %w", err)
	}
	p, err := pool.New(s.dev, pool.Config{Queue: txQueue, Template: tmpl})
	if err != nil {
		return fmt.Errorf("transmit pool: %w", err)
	}
	defer func() {
		if perr := p.Close(); perr != nil {
			err = errors.Join(err, perr)
		}
	}()

	s.advertiseAll()
	defer s.unadvertiseAll()
	if len(s.reserved) == 0 {
		return ErrNoStreams
	}
	s.metrics.SetStreamsReserved(len(s.reserved))

	first := s.reserved[0].ID
	logrus.WithFields(logrus.Fields{
		"function":  "Session.Run",
		"stream_id": first.String(),
	}).Info("Awaiting a listener")
	if err := s.res.AwaitListenerReady(ctx, first); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("await listener: %w", err)
	}

	sched, err := NewScheduler(s.cfg.Scheduler, p, s.dev, s.reserved, s.src, s.clk, s.metrics)
	if err != nil {
		return err
	}
	return sched.Run(ctx)
}

// advertiseAll declares every stream. A failing stream is reported and left
// out; the others continue.
func (s *Session) advertiseAll() {
	for _, d := range s.registry.Descriptors() {
		if err := s.res.Advertise(s.advertisement(d)); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Session.advertiseAll",
				"stream_id": d.ID.String(),
				"error":     err.Error(),
			}).Error("Advertise failed, dropping stream")
			continue
		}
		s.reserved = append(s.reserved, d)
		logrus.WithFields(logrus.Fields{
			"function":    "Session.advertiseAll",
			"stream_id":   d.ID.String(),
			"destination": d.Destination.String(),
		}).Info("Advertised stream")
	}
}

func (s *Session) unadvertiseAll() {
	for _, d := range s.reserved {
		if err := s.res.Unadvertise(s.advertisement(d)); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Session.unadvertiseAll",
				"stream_id": d.ID.String(),
				"error":     err.Error(),
			}).Warn("Unadvertise failed")
		}
	}
	s.metrics.SetStreamsReserved(0)
}
