package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	t time.Time
}

func (f fixedClock) Now() time.Time {
	return f.t
}

func TestNetworkTimeIdentity(t *testing.T) {
	td := TimeData{LocalTime: 1_000_000, FreqOffset: 1.0}
	assert.Equal(t, uint64(1_000_500), td.NetworkTime(1_000_500))
}

func TestNetworkTimeOffsets(t *testing.T) {
	td := TimeData{LocalTime: 10_000, PhaseOffset: 2_000, FreqOffset: 2.0}
	// network time at the sample is 8000, and advances twice as fast
	assert.Equal(t, uint64(8_000), td.NetworkTime(10_000))
	assert.Equal(t, uint64(8_200), td.NetworkTime(10_100))

	negative := TimeData{LocalTime: 10_000, PhaseOffset: -500, FreqOffset: 1.0}
	assert.Equal(t, uint64(10_600), negative.NetworkTime(10_100))
}

func TestSystemSource(t *testing.T) {
	at := time.Unix(100, 42)
	src := SystemSource{Provider: fixedClock{t: at}}

	td, err := src.TimeData()
	require.NoError(t, err)
	assert.Equal(t, uint64(at.UnixNano()), td.LocalTime)
	assert.Equal(t, int64(0), td.PhaseOffset)
	assert.Equal(t, 1.0, td.FreqOffset)
}

func TestSetLocalClock(t *testing.T) {
	at := time.Unix(7, 0)
	SetLocalClock(fixedClock{t: at})
	defer SetLocalClock(nil)

	assert.Equal(t, uint64(at.UnixNano()), LocalNanos(nil))

	td, err := SystemSource{}.TimeData()
	require.NoError(t, err)
	assert.Equal(t, uint64(at.UnixNano()), td.LocalTime)
}

func TestSetLocalClockNilRestoresSystem(t *testing.T) {
	SetLocalClock(fixedClock{t: time.Unix(7, 0)})
	SetLocalClock(nil)

	before := uint64(time.Now().UnixNano())
	assert.GreaterOrEqual(t, LocalNanos(nil), before)
}
