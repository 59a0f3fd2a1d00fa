package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	// MaxSampleValue is the largest left-aligned 32-bit sample.
	MaxSampleValue = math.MaxInt32

	// sineTableSize is the period of the generated tone in samples.
	sineTableSize = 100
)

// Source fills interleaved left-aligned int32 samples.
type Source interface {
	// Fill writes frames sample periods of every channel into buf.
	Fill(buf []int32, frames int) error
	// Channels returns the number of interleaved channels.
	Channels() int
}

// SineSource produces the same sine tone on every channel. At 48 kHz the
// 100-sample period is a 480 Hz tone.
type SineSource struct {
	table    []int32
	channels int
	index    int
}

// NewSineSource creates a sine source with the given gain (0..1).
func NewSineSource(channels int, gain float64) (*SineSource, error) {
	if channels < 1 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	if gain < 0 || gain > 1 {
		return nil, fmt.Errorf("gain %.2f out of range 0-1", gain)
	}

	table := make([]int32, sineTableSize)
	step := 2 * math.Pi / sineTableSize
	for i := range table {
		table[i] = int32(MaxSampleValue * math.Sin(float64(i)*step) * gain)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSineSource",
		"channels": channels,
		"gain":     gain,
	}).Debug("Created sine source")

	return &SineSource{table: table, channels: channels}, nil
}

// Fill implements Source.
func (s *SineSource) Fill(buf []int32, frames int) error {
	if len(buf) < frames*s.channels {
		return fmt.Errorf("buffer holds %d samples, need %d", len(buf), frames*s.channels)
	}
	k := 0
	for f := 0; f < frames; f++ {
		v := s.table[s.index]
		for c := 0; c < s.channels; c++ {
			buf[k] = v
			k++
		}
		s.index = (s.index + 1) % len(s.table)
	}
	return nil
}

// Channels implements Source.
func (s *SineSource) Channels() int {
	return s.channels
}
