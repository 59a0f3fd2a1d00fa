// Package clock is the boundary to the 802.1AS clock-sync service.
//
// The gPTP daemon publishes the relation between the NIC's local clock and
// the network's master clock as a phase offset and a frequency ratio sampled
// at some local time. The talker turns a fresh local wallclock reading into
// network time with TimeData.NetworkTime and derives its first launch time
// and presentation timestamp from the two.
package clock

import (
	"time"

	"github.com/sirupsen/logrus"
)

// TimeProvider reads a local clock. Without a NIC that exposes its own
// wallclock, the software transmit device and SystemSource read local time
// through it, so tests can pin both to the same instant.
type TimeProvider interface {
	Now() time.Time
}

// SystemClock reads the host's system clock.
type SystemClock struct{}

// Now implements TimeProvider.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// fallback is read by components configured without a TimeProvider.
var fallback TimeProvider = SystemClock{}

// SetLocalClock replaces the clock read by components that were given none.
// nil restores the system clock.
func SetLocalClock(tp TimeProvider) {
	if tp == nil {
		tp = SystemClock{}
	}
	fallback = tp
}

func localClock(tp TimeProvider) TimeProvider {
	if tp == nil {
		return fallback
	}
	return tp
}

// TimeData is one sample of the local-to-network clock relation.
type TimeData struct {
	// LocalTime is the local clock reading the sample was taken at, in ns.
	LocalTime uint64
	// PhaseOffset is local minus network time at LocalTime, in ns.
	PhaseOffset int64
	// FreqOffset is the network/local frequency ratio.
	FreqOffset float64
}

// NetworkTime extrapolates network time for the local clock reading nowLocal.
func (td TimeData) NetworkTime(nowLocal uint64) uint64 {
	update := td.LocalTime - uint64(td.PhaseOffset)
	deltaLocal := uint32(nowLocal - td.LocalTime)
	deltaNetwork := uint32(td.FreqOffset * float64(deltaLocal))
	return update + uint64(deltaNetwork)
}

// Source provides clock relation samples.
type Source interface {
	TimeData() (TimeData, error)
}

// SystemSource treats the system clock as both local and network time. It
// stands in when no gPTP daemon runs, e.g. on a single host or in tests.
type SystemSource struct {
	Provider TimeProvider
}

// TimeData returns a zero-offset, unit-ratio sample taken now.
func (s SystemSource) TimeData() (TimeData, error) {
	now := localClock(s.Provider).Now()
	td := TimeData{
		LocalTime:  uint64(now.UnixNano()),
		FreqOffset: 1.0,
	}
	logrus.WithFields(logrus.Fields{
		"function":   "SystemSource.TimeData",
		"local_time": td.LocalTime,
	}).Debug("Sampled system clock")
	return td, nil
}

// LocalNanos returns the local clock reading in nanoseconds.
func LocalNanos(tp TimeProvider) uint64 {
	return uint64(localClock(tp).Now().UnixNano())
}
