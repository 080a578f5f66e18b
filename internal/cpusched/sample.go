package cpusched

import (
	"context"
	"time"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/mathutil"
	"github.com/virtloop/retune/internal/retunelog"
)

// SampleResult reports, per tick, which entities had a regressed counter
// (spec §4.1) and so must be excluded from this tick's classification even
// though the tick itself did not fail.
type SampleResult struct {
	PCPURegressed bitset.Set
	VCPURegressed bitset.Set
}

// Sample converts idle-time and vCPU run-time counter deltas over a cycle
// of period into utilization percentages (spec §4.2). A failed counter
// read is a hard per-tick error and propagates unwrapped (already a typed
// hostiface sentinel); a counter that regresses is not a hard error but
// excludes that single entity from this tick's classification, per spec
// §4.1. Counters are refreshed last-writes-win at the end of sampling,
// regardless of regression, so the next tick starts from a consistent
// baseline.
func Sample(ctx context.Context, c *Context, period time.Duration) (SampleResult, error) {
	var res SampleResult
	tns := period.Nanoseconds()
	if tns <= 0 {
		tns = 1
	}

	for i := range c.PCPUs {
		p := &c.PCPUs[i]
		idleNow, err := c.Iface.PCPUIdleNs(ctx, p.ID)
		if err != nil {
			return SampleResult{}, err
		}
		delta, regressed := mathutil.CounterDelta(idleNow, p.IdlePrev)
		if regressed {
			res.PCPURegressed.SetBit(i)
			p.IdlePrev = idleNow
			retunelog.CounterRegressed("cpusched", "pcpu", p.ID)
			continue
		}
		p.Util = mathutil.ClampPct(100 - int64(delta)*100/tns)
		p.IdlePrev = idleNow
	}

	for i := range c.VCPUs {
		v := &c.VCPUs[i]
		info, err := c.Iface.GuestVCPUInfo(ctx, c.Guests[v.GuestIdx].Handle)
		if err != nil {
			return SampleResult{}, err
		}
		delta, regressed := mathutil.CounterDelta(info.RunNs, v.RunPrev)
		if regressed {
			res.VCPURegressed.SetBit(i)
			v.RunPrev = info.RunNs
			retunelog.CounterRegressed("cpusched", "vcpu", i)
			continue
		}
		v.Util = mathutil.ClampPct(int64(delta) * 100 / tns)
		v.RunPrev = info.RunNs
	}

	return res, nil
}
