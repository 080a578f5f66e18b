package memcoord

import (
	"context"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/hostiface"
)

// SampleResult reports which guests had mem_total == 0 this tick and so
// must be excluded from classification (spec §4.6: "otherwise skip
// classification for that guest").
type SampleResult struct {
	Skipped bitset.Set
}

// Sample refreshes host_free and, for each guest, its balloon-stats
// derived mem_total/mem_free/percent_avail (spec §4.6). Iteration order
// over a guest's tag list is irrelevant — tags are matched by name.
func Sample(ctx context.Context, c *Context) (SampleResult, error) {
	var res SampleResult

	hostFree, err := c.Iface.HostFreeKiB(ctx)
	if err != nil {
		return SampleResult{}, err
	}
	c.HostFree = hostFree

	for i := range c.Guests {
		stats, err := c.Iface.GuestMemStats(ctx, c.Guests[i].Handle)
		if err != nil {
			return SampleResult{}, err
		}

		var total, free uint64
		for _, s := range stats {
			switch s.Tag {
			case hostiface.MemStatActualBalloon:
				total = s.Value
			case hostiface.MemStatUnused:
				free = s.Value
			}
		}

		m := &c.Mem[i]
		m.Total = total
		m.Free = free

		if total == 0 {
			res.Skipped.SetBit(i)
			m.Percent = 0
			continue
		}
		pct := 100 * free / total
		if pct > 100 {
			pct = 100
		}
		m.Percent = int(pct)
	}

	return res, nil
}
