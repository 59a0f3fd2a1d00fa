package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	acceptedA = ID{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55, 0x00, 0x00}
	acceptedB = ID{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55, 0x00, 0x01}
)

func newAcceptedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(2)
	_, err := r.Add(acceptedA, DefaultDestination)
	require.NoError(t, err)
	_, err = r.Add(acceptedB, DefaultDestination.Offset(1))
	require.NoError(t, err)
	return r
}

func TestRegistryAdd(t *testing.T) {
	r := newAcceptedRegistry(t)
	assert.Equal(t, 2, r.Len())

	_, err := r.Add(acceptedA, DefaultDestination)
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = r.Add(ID{1}, DefaultDestination)
	assert.ErrorIs(t, err, ErrRegistryFull)

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, 0, descs[0].Index)
	assert.Equal(t, 1, descs[1].Index)
}

func TestRegistryClaimOnce(t *testing.T) {
	r := newAcceptedRegistry(t)

	d, ok := r.Claim(acceptedB)
	require.True(t, ok)
	assert.Equal(t, acceptedB, d.ID)
	assert.True(t, d.Spawned())

	_, ok = r.Claim(acceptedB)
	assert.False(t, ok, "duplicate claim must be a no-op")

	a, _ := r.Lookup(acceptedA)
	assert.False(t, a.Spawned())
	assert.Len(t, r.Spawned(), 1)
}

func TestRegistryReleaseAllowsReclaim(t *testing.T) {
	r := newAcceptedRegistry(t)

	assert.False(t, r.Release(acceptedA), "unclaimed stream")
	assert.False(t, r.Release(ID{0xde, 0xad}), "unknown stream")

	_, ok := r.Claim(acceptedA)
	require.True(t, ok)
	assert.True(t, r.Release(acceptedA))
	assert.Empty(t, r.Spawned())

	d, ok := r.Claim(acceptedA)
	require.True(t, ok)
	assert.True(t, d.Spawned())
}

func TestRegistryClaimUnknown(t *testing.T) {
	r := newAcceptedRegistry(t)

	_, ok := r.Claim(ID{0xde, 0xad})
	assert.False(t, ok)
	assert.Empty(t, r.Spawned())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryClaimConcurrent(t *testing.T) {
	r := newAcceptedRegistry(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Claim(acceptedA); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDescriptorCountReceived(t *testing.T) {
	r := newAcceptedRegistry(t)
	d, _ := r.Lookup(acceptedA)
	assert.Equal(t, uint64(1), d.CountReceived())
	assert.Equal(t, uint64(2), d.CountReceived())
	assert.Equal(t, uint64(2), d.Received())
}

func TestDestinationsDistinct(t *testing.T) {
	r := NewRegistry(3)
	_, _ = r.Add(ID{1}, DefaultDestination)
	_, _ = r.Add(ID{2}, DefaultDestination)
	_, _ = r.Add(ID{3}, DefaultDestination.Offset(1))
	assert.Equal(t, []MAC{DefaultDestination, DefaultDestination.Offset(1)}, r.Destinations())
}

func TestTalkerStreams(t *testing.T) {
	station := MAC{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55}
	r, err := TalkerStreams(station, 3, DefaultDestination)
	require.NoError(t, err)

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	for i, d := range descs {
		assert.Equal(t, station[:], d.ID[:6])
		assert.Equal(t, byte(i), d.ID[7])
		assert.Equal(t, byte(0x80+i), d.Destination[5])
	}
	assert.Equal(t, acceptedB, descs[1].ID)
}
