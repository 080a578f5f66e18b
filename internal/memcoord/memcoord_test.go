package memcoord

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/hostiface"
)

func newFakeWithGuests(n int) (*hostiface.FakeHost, []*hostiface.FakeGuest) {
	f := hostiface.NewFakeHost()
	guests := make([]*hostiface.FakeGuest, n)
	f.MemStats = make([][]hostiface.MemStat, n)
	f.MaxMem = make([]uint64, n)
	for i := 0; i < n; i++ {
		guests[i] = &hostiface.FakeGuest{GuestName: "guest" + string(rune('0'+i))}
		f.Guests = append(f.Guests, guests[i])
		f.MaxMem[i] = 10_000_000
	}
	return f, guests
}

// scenario 4: memory excess reclaim.
func TestAdjust_ExcessReclaim(t *testing.T) {
	f, _ := newFakeWithGuests(1)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 1_000_000},
		{Tag: hostiface.MemStatUnused, Value: 500_000},
	}
	f.HostTotal = 8_000_000
	f.HostFree = 4_000_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	cfg := DefaultConfig()
	sres, err := Sample(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 50, c.Mem[0].Percent)

	Classify(c, cfg, sres.Skipped)
	require.True(t, c.HighMemMask.Has(0))

	require.NoError(t, Adjust(context.Background(), c, cfg))
	assert.Equal(t, uint64(800_000), f.SetMem[0])
	assert.Equal(t, uint64(800_000), c.Mem[0].Total)
	assert.True(t, c.HighMemMask.Empty())
}

// scenario 5: memory hungry grant.
func TestAdjust_HungryGrant(t *testing.T) {
	f, _ := newFakeWithGuests(1)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 1_000_000},
		{Tag: hostiface.MemStatUnused, Value: 100_000},
	}
	f.MaxMem[0] = 10_000_000
	f.HostTotal = 8_000_000
	f.HostFree = 4_000_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	cfg := DefaultConfig()
	sres, err := Sample(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 10, c.Mem[0].Percent)

	Classify(c, cfg, sres.Skipped)
	require.True(t, c.LowMemMask.Has(0))

	require.NoError(t, Adjust(context.Background(), c, cfg))
	assert.Equal(t, uint64(1_200_000), f.SetMem[0])
	assert.Equal(t, uint64(1_200_000), c.Mem[0].Total)
	assert.True(t, c.LowMemMask.Empty())
}

// scenario 6: fair reclaim under host pressure.
func TestAdjust_FairReclaimUnderHostPressure(t *testing.T) {
	f, _ := newFakeWithGuests(2)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 2_000_000},
		{Tag: hostiface.MemStatUnused, Value: 100_000}, // 5% -> hungry
	}
	f.MemStats[1] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 2_000_000},
		{Tag: hostiface.MemStatUnused, Value: 700_000}, // 35% -> excess
	}
	f.MaxMem[0] = 10_000_000
	f.MaxMem[1] = 10_000_000
	f.HostTotal = 4_500_000
	f.HostFree = 400_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	cfg := DefaultConfig()
	sres, err := Sample(context.Background(), c)
	require.NoError(t, err)

	Classify(c, cfg, sres.Skipped)
	require.True(t, c.LowMemMask.Has(0))

	require.NoError(t, Adjust(context.Background(), c, cfg))

	// Fair reclaim must have issued a guest_set_memory_kib for every guest.
	assert.NotZero(t, f.SetMem[0])
	assert.NotZero(t, f.SetMem[1])
	assert.True(t, c.LowMemMask.Empty())

	// No guest grew: their final mem_total is <= what they started with
	// after the excess pass (guest 1 shrank further in fair reclaim too).
	assert.LessOrEqual(t, c.Mem[0].Total, uint64(2_000_000))
}

// P4 (spec MEM-2): mem_total never exceeds mem_max after adjustment.
func TestInvariant_MemTotalNeverExceedsMax(t *testing.T) {
	f, _ := newFakeWithGuests(1)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 900_000},
		{Tag: hostiface.MemStatUnused, Value: 90_000}, // 10% -> hungry
	}
	f.MaxMem[0] = 1_000_000
	f.HostTotal = 100_000_000
	f.HostFree = 90_000_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	cfg := DefaultConfig()
	sres, err := Sample(context.Background(), c)
	require.NoError(t, err)
	Classify(c, cfg, sres.Skipped)

	require.NoError(t, Adjust(context.Background(), c, cfg))
	assert.LessOrEqual(t, c.Mem[0].Total, c.Mem[0].Max)
}

// P3: percent_avail is always clamped to [0,100].
func TestSample_PercentAvailClamped(t *testing.T) {
	f, _ := newFakeWithGuests(1)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 1_000},
		{Tag: hostiface.MemStatUnused, Value: 5_000}, // free > total
	}
	f.HostTotal = 10_000
	f.HostFree = 5_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	_, err = Sample(context.Background(), c)
	require.NoError(t, err)
	assert.LessOrEqual(t, c.Mem[0].Percent, 100)
	assert.GreaterOrEqual(t, c.Mem[0].Percent, 0)
}

// mem_total == 0 must skip classification for that guest (spec §4.6).
func TestSample_SkipsZeroMemTotal(t *testing.T) {
	f, _ := newFakeWithGuests(1)
	f.MemStats[0] = []hostiface.MemStat{
		{Tag: hostiface.MemStatActualBalloon, Value: 0},
		{Tag: hostiface.MemStatUnused, Value: 0},
	}
	f.HostTotal = 10_000
	f.HostFree = 5_000

	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	sres, err := Sample(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, sres.Skipped.Has(0))

	cfg := DefaultConfig()
	Classify(c, cfg, sres.Skipped)
	assert.Equal(t, bitset.New(), c.HighMemMask)
	assert.Equal(t, bitset.New(), c.LowMemMask)
}
