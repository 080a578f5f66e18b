package cpusched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/hostiface"
)

func newFakeWithGuests(n int, numPCPUs int) (*hostiface.FakeHost, []*hostiface.FakeGuest) {
	f := hostiface.NewFakeHost()
	guests := make([]*hostiface.FakeGuest, n)
	f.VCPU = make([]hostiface.VCPUInfo, n)
	for i := 0; i < n; i++ {
		guests[i] = &hostiface.FakeGuest{GuestName: "guest" + string(rune('0'+i))}
		f.Guests = append(f.Guests, guests[i])
		f.VCPU[i] = hostiface.VCPUInfo{RunNs: 0}
	}
	f.PCPUIdle = make([]uint64, numPCPUs)
	return f, guests
}

// scenario 1: balanced init — 4 guests, 4 pCPUs, guest i -> pCPU i.
func TestInit_BalancedPlacement(t *testing.T) {
	f, _ := newFakeWithGuests(4, 4)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	for i := 0; i < 4; i++ {
		assert.Equal(t, i, c.VCPUs[i].PCPU, "guest %d should be pinned to pcpu %d", i, i)
		assert.Equal(t, 1, c.PCPUs[i].NumPinned)
		assert.Equal(t, i, c.PCPUs[i].HeadIdx)
	}
}

// spec §4.2: utilization is a clamped percentage of counter deltas over
// the sampling period, not a raw counter value.
func TestSample_ComputesUtilizationFromCounterDeltas(t *testing.T) {
	f, _ := newFakeWithGuests(4, 2)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	period := time.Second

	// pcpu0: 50ms idle out of 1s -> 95% busy. pcpu1: 700ms idle -> 30% busy.
	f.PCPUIdle[0] = 50_000_000
	f.PCPUIdle[1] = 700_000_000

	// guest0, guest2 (pinned to pcpu0): 400ms of a 1s period -> 40% util.
	// guest1, guest3 (pinned to pcpu1): idle the whole period -> 0% util.
	f.VCPU[0].RunNs = 400_000_000
	f.VCPU[2].RunNs = 400_000_000

	res, err := Sample(context.Background(), c, period)
	require.NoError(t, err)
	assert.True(t, res.PCPURegressed.Empty())
	assert.True(t, res.VCPURegressed.Empty())

	assert.Equal(t, 95, c.PCPUs[0].Util)
	assert.Equal(t, 30, c.PCPUs[1].Util)
	assert.Equal(t, 40, c.VCPUs[0].Util)
	assert.Equal(t, 0, c.VCPUs[1].Util)
	assert.Equal(t, 40, c.VCPUs[2].Util)
	assert.Equal(t, 0, c.VCPUs[3].Util)
}

// spec §4.2: a counter that moves backwards between samples marks its
// entity regressed instead of producing a nonsensical negative delta,
// and the counter baseline still advances so the next tick is clean.
func TestSample_DetectsCounterRegression(t *testing.T) {
	f, _ := newFakeWithGuests(1, 1)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	period := time.Second
	f.PCPUIdle[0] = 500_000_000
	f.VCPU[0].RunNs = 500_000_000
	res, err := Sample(context.Background(), c, period)
	require.NoError(t, err)
	require.True(t, res.PCPURegressed.Empty())
	require.True(t, res.VCPURegressed.Empty())

	// Both counters regress on the next tick (e.g. guest/host restart).
	f.PCPUIdle[0] = 100_000_000
	f.VCPU[0].RunNs = 100_000_000
	staleUtil := c.VCPUs[0].Util

	res, err = Sample(context.Background(), c, period)
	require.NoError(t, err)
	assert.True(t, res.PCPURegressed.Has(0))
	assert.True(t, res.VCPURegressed.Has(0))
	assert.Equal(t, staleUtil, c.VCPUs[0].Util, "regressed entity keeps its stale Util")
	assert.Equal(t, uint64(100_000_000), c.PCPUs[0].IdlePrev, "baseline still advances past regression")
	assert.Equal(t, uint64(100_000_000), c.VCPUs[0].RunPrev)
}

// scenario 2: overloaded single pCPU — 4 guests, 2 pCPUs.
// Init placement (i mod numPCPUs) pins guest 0,2 -> pcpu0 and guest 1,3 -> pcpu1.
func TestMigrate_OverloadedSinglePCPU(t *testing.T) {
	f, _ := newFakeWithGuests(4, 2)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	require.Equal(t, 2, c.PCPUs[0].NumPinned)
	require.Equal(t, 2, c.PCPUs[1].NumPinned)

	period := time.Second
	f.PCPUIdle[0] = 50_000_000   // 95% busy
	f.PCPUIdle[1] = 700_000_000  // 30% busy
	f.VCPU[0].RunNs = 400_000_000 // guest 0, pinned to pcpu0 -> 40%
	f.VCPU[2].RunNs = 400_000_000 // guest 2, pinned to pcpu0 -> 40%

	res, err := Sample(context.Background(), c, period)
	require.NoError(t, err)

	cfg := DefaultConfig()
	Classify(c, cfg, res.PCPURegressed)

	require.True(t, c.HighMask.Has(0))
	require.True(t, c.LowMask.Has(1))

	n, err := Migrate(context.Background(), c, cfg, res.VCPURegressed)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one migration should occur")

	// Tie broken first-found: guest 0 (earlier in pcpu0's ring) migrates.
	assert.Equal(t, 1, c.VCPUs[0].PCPU)
	assert.Equal(t, 1, c.PCPUs[0].NumPinned)
	assert.Equal(t, 3, c.PCPUs[1].NumPinned)
}

// A vCPU whose run-time counter regressed must be excluded from the
// best-fit ring scan entirely, even when its stale Util would otherwise
// make it the closest-to-target (and thus preferred) candidate.
func TestMigrate_ExcludesRegressedVCPUFromCandidateSelection(t *testing.T) {
	f, _ := newFakeWithGuests(4, 2)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	period := time.Second

	// Tick 1: warm up real counters. guest0 -> 0%, guest2 -> 40%.
	f.PCPUIdle[0] = 50_000_000
	f.PCPUIdle[1] = 700_000_000
	f.VCPU[2].RunNs = 400_000_000
	_, err = Sample(context.Background(), c, period)
	require.NoError(t, err)
	require.Equal(t, 0, c.VCPUs[0].Util)
	require.Equal(t, 40, c.VCPUs[2].Util)

	// Tick 2: pCPUs classify the same way again, but guest2's run-time
	// counter regresses (e.g. the guest was reset).
	f.PCPUIdle[0] += 50_000_000
	f.PCPUIdle[1] += 700_000_000
	f.VCPU[2].RunNs = 100_000_000 // less than the 400_000_000 baseline
	res, err := Sample(context.Background(), c, period)
	require.NoError(t, err)
	require.True(t, res.VCPURegressed.Has(2))
	require.Equal(t, 40, c.VCPUs[2].Util, "stale Util is left untouched by regression")

	cfg := DefaultConfig()
	Classify(c, cfg, res.PCPURegressed)
	require.True(t, c.HighMask.Has(0))
	require.True(t, c.LowMask.Has(1))

	n, err := Migrate(context.Background(), c, cfg, res.VCPURegressed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// guest2 looks like the better best-fit candidate (proj closer to
	// Target) but must be skipped because it regressed; guest0 migrates
	// instead, and guest2 stays put.
	assert.Equal(t, 1, c.VCPUs[0].PCPU, "guest0 migrates since guest2 is excluded")
	assert.Equal(t, 0, c.VCPUs[2].PCPU, "regressed guest2 is left untouched")
}

// scenario 3: stable state — all pCPUs within [LOW_THRESH, HIGH_THRESH] -> zero migrations (P5).
func TestMigrate_StableState_NoMigration(t *testing.T) {
	f, _ := newFakeWithGuests(4, 2)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	for i := range c.PCPUs {
		c.PCPUs[i].Util = 80
	}
	for i := range c.VCPUs {
		c.VCPUs[i].Util = 40
	}

	cfg := DefaultConfig()
	Classify(c, cfg, bitset.New())
	assert.True(t, c.HighMask.Empty())
	assert.True(t, c.LowMask.Empty())

	n, err := Migrate(context.Background(), c, cfg, bitset.New())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// P1/P2 invariants after classification: ring length equals NumPinned,
// and high/low masks stay disjoint.
func TestInvariants_RingLengthAndDisjointMasks(t *testing.T) {
	f, _ := newFakeWithGuests(6, 3)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	for i := range c.PCPUs {
		n := ringLen(c, i)
		assert.Equal(t, c.PCPUs[i].NumPinned, n)
	}

	c.PCPUs[0].Util = 95
	c.PCPUs[1].Util = 60
	c.PCPUs[2].Util = 10
	cfg := DefaultConfig()
	Classify(c, cfg, bitset.New())
	assert.True(t, c.HighMask.Disjoint(c.LowMask))
}

// P2 (spec CPU-3): a pCPU with NumPinned <= 1 is never marked hot, even
// at very high utilization.
func TestClassify_HotRequiresMoreThanOnePinned(t *testing.T) {
	f, _ := newFakeWithGuests(2, 2)
	c, err := Init(context.Background(), f, "test:///", DefaultConfig())
	require.NoError(t, err)
	defer Teardown(context.Background(), c)

	c.PCPUs[0].Util = 99
	c.PCPUs[1].Util = 99
	cfg := DefaultConfig()
	Classify(c, cfg, bitset.New())
	assert.False(t, c.HighMask.Has(0))
	assert.False(t, c.HighMask.Has(1))
}

func ringLen(c *Context, pcpuIdx int) int {
	p := c.PCPUs[pcpuIdx]
	if p.HeadIdx == noPCPU {
		return 0
	}
	n := 1
	v := c.VCPUs[p.HeadIdx].NextIdx
	for v != p.HeadIdx {
		n++
		v = c.VCPUs[v].NextIdx
	}
	return n
}
