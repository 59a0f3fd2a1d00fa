package listener

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opd-ai/avbstream/audio"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/stream"
)

// Capture is a blocking source of raw Ethernet frames.
type Capture interface {
	// ReadPacket blocks until a frame arrives and copies it into buf.
	ReadPacket(buf []byte) (int, error)
	// Close releases the handle and unblocks a pending ReadPacket.
	Close() error
}

// CaptureOpener opens a capture that passes frames addressed to any of the
// given destinations.
type CaptureOpener func(destinations []stream.MAC) (Capture, error)

// Sink consumes the samples of one stream.
type Sink interface {
	// WriteSamples writes interleaved left-aligned samples.
	WriteSamples(samples []int32) error
	Close() error
}

// SinkFactory creates the sink of a stream.
type SinkFactory func(d *stream.Descriptor) (Sink, error)

// Reserver is the part of the reservation client a listener needs.
// *msrp.Client implements it.
type Reserver interface {
	RegisterDomain(class, priority uint8, vid uint16) error
	JoinVLAN() error
	PollTalkerAdvertisement(ctx context.Context) (*stream.Descriptor, error)
	SendReady(id stream.ID) error
	WithdrawReady(id stream.ID) error
	SendLeave(id stream.ID) error
}

// WAVSinks returns a SinkFactory writing stream i to <base>_<i>.wav in dir.
func WAVSinks(dir, base string) SinkFactory {
	return func(d *stream.Descriptor) (Sink, error) {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.wav", base, d.Index))
		s, err := audio.CreateWAV(path, limits.SampleRate, limits.Channels)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// TeeSinks fans each stream out to the sinks of every factory.
func TeeSinks(factories ...SinkFactory) SinkFactory {
	return func(d *stream.Descriptor) (Sink, error) {
		var t tee
		for _, f := range factories {
			s, err := f(d)
			if err != nil {
				_ = t.Close()
				return nil, err
			}
			t = append(t, s)
		}
		return t, nil
	}
}

type tee []Sink

func (t tee) WriteSamples(samples []int32) error {
	for _, s := range t {
		if err := s.WriteSamples(samples); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
