package pool

import (
	"errors"
	"testing"

	"github.com/opd-ai/avbstream/avtp"
	"github.com/opd-ai/avbstream/device"
	"github.com/opd-ai/avbstream/device/devicetest"
	"github.com/opd-ai/avbstream/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var station = stream.MAC{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55}

func newPool(t *testing.T, dev *devicetest.Fake) (*Pool, []byte) {
	t.Helper()
	tmpl, err := avtp.Template(avtp.TemplateConfig{
		Source:      station,
		Destination: stream.DefaultDestination,
		VLAN:        avtp.VLANTag{Priority: 3, VID: 2},
		Samples:     12,
	})
	require.NoError(t, err)
	p, err := New(dev, Config{Template: tmpl})
	require.NoError(t, err)
	return p, tmpl
}

func TestNewSlicesPage(t *testing.T) {
	dev := devicetest.New()
	p, tmpl := newPool(t, dev)

	assert.Equal(t, 4096/98, p.Size())
	assert.Equal(t, p.Size(), p.Free())
	assert.Equal(t, 0, p.InFlight())

	b := p.TryAcquire()
	require.NotNil(t, b)
	assert.Equal(t, StateStaging, b.State())
	assert.Equal(t, tmpl, []byte(b.Frame()))
}

func TestNewRejectsSmallPage(t *testing.T) {
	dev := devicetest.New()
	dev.PageSize = 50
	tmpl := make([]byte, 98)
	_, err := New(dev, Config{Template: tmpl})
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Equal(t, 1, dev.PagesFreed())
}

func TestLifecycle(t *testing.T) {
	dev := devicetest.New()
	p, _ := newPool(t, dev)
	total := p.Size()

	b := p.TryAcquire()
	require.NotNil(t, b)
	assert.Equal(t, total-1, p.Free())

	require.NoError(t, p.Submit(b))
	assert.Equal(t, StateInFlight, b.State())
	assert.Equal(t, 1, p.InFlight())

	assert.Equal(t, 1, p.Reclaim())
	assert.Equal(t, StateFree, b.State())
	assert.Equal(t, total, p.Free())
	assert.Equal(t, 0, p.InFlight())
}

func TestReuseCarriesNoResidualStreamFields(t *testing.T) {
	dev := devicetest.New()
	p, tmpl := newPool(t, dev)

	// drain the free list so the reclaimed buffer is the next one popped
	var all []*Buffer
	for b := p.TryAcquire(); b != nil; b = p.TryAcquire() {
		all = append(all, b)
	}
	for _, b := range all[1:] {
		require.NoError(t, p.Release(b))
	}

	used := all[0]
	f := used.Frame()
	f.SetDestination(stream.DefaultDestination.Offset(5))
	f.SetStreamID(stream.ID{0xa0, 0x36, 0x9f, 0x4c, 0x92, 0x55, 0x00, 0x05})
	used.SetAttime(12345)
	require.NoError(t, p.Submit(used))
	require.Equal(t, 1, p.Reclaim())

	again := p.TryAcquire()
	require.Same(t, used, again)
	assert.Equal(t, tmpl, []byte(again.Frame()))
	assert.Equal(t, uint64(0), again.Packet().Attime)
}

func TestSubmitQueueFullReturnsBufferToFreeList(t *testing.T) {
	dev := devicetest.New()
	dev.FullCount = 1
	p, _ := newPool(t, dev)
	total := p.Size()

	b := p.TryAcquire()
	b.Frame().SetSequence(9)
	err := p.Submit(b)
	assert.ErrorIs(t, err, device.ErrQueueFull)
	assert.Equal(t, StateFree, b.State())
	assert.Equal(t, total, p.Free())
	assert.Equal(t, 0, p.InFlight())

	// the stamped content is kept for the retry
	again := p.TryAcquire()
	require.Same(t, b, again)
	assert.Equal(t, uint8(9), again.Frame().Sequence())
	require.NoError(t, p.Submit(again))
}

func TestSubmitHardError(t *testing.T) {
	dev := devicetest.New()
	dev.XmitErr = errors.New("link down")
	p, _ := newPool(t, dev)

	b := p.TryAcquire()
	err := p.Submit(b)
	assert.EqualError(t, err, "link down")
	assert.Equal(t, StateStaging, b.State(), "caller still owns the buffer")
}

func TestOwnershipChecks(t *testing.T) {
	dev := devicetest.New()
	p, _ := newPool(t, dev)

	b := p.TryAcquire()
	require.NoError(t, p.Submit(b))

	assert.ErrorIs(t, p.Submit(b), ErrNotOwned)
	assert.ErrorIs(t, p.Release(b), ErrNotOwned)
}

func TestStarvationAndReclaim(t *testing.T) {
	dev := devicetest.New()
	dev.RingSize = 0
	dev.CompletePerClean = 1
	p, _ := newPool(t, dev)

	for b := p.TryAcquire(); b != nil; b = p.TryAcquire() {
		require.NoError(t, p.Submit(b))
	}
	assert.Nil(t, p.TryAcquire())
	assert.Equal(t, 0, p.Free())

	// hardware progress frees exactly one slot per clean
	assert.Equal(t, 1, p.Reclaim())
	assert.NotNil(t, p.TryAcquire())
	assert.Nil(t, p.TryAcquire())
}

func TestClose(t *testing.T) {
	dev := devicetest.New()
	p, _ := newPool(t, dev)

	b := p.TryAcquire()
	require.NoError(t, p.Submit(b))
	require.NoError(t, p.Close())
	assert.Equal(t, 1, dev.PagesFreed())
	assert.Equal(t, 0, p.InFlight())
	assert.Nil(t, p.TryAcquire())

	require.NoError(t, p.Close())
	assert.Equal(t, 1, dev.PagesFreed())
}
