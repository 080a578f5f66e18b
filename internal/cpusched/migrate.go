package cpusched

import (
	"context"

	"github.com/virtloop/retune/internal/bitset"
)

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Migrate runs the best-fit migration planner (spec §4.4). It consumes
// working copies of HighMask/LowMask for candidate selection, but
// additionally clears bits in the authoritative c.HighMask as vCPUs are
// actually moved off their origin pCPU. Returns the number of pin() calls
// made — zero means the system had already reached a stable state (spec
// §8 P5).
//
// vcpuRegressed excludes vCPUs whose run-time counter regressed this
// tick from ring scans entirely (spec §4.1: a regressed counter "must
// ... cause the tick to skip classification for that entity" — this
// applies to a vCPU's stale Util exactly as it does to a pCPU's).
//
// Tie-break is first-found (strict <, not <=): pCPUs are scanned in
// ascending index order, and within a pCPU's ring, vCPUs are visited in
// insertion (tail-append) order, matching spec §4.4 exactly.
func Migrate(ctx context.Context, c *Context, cfg *Config, vcpuRegressed bitset.Set) (int, error) {
	workingLow := c.LowMask
	workingHigh := c.HighMask
	migrations := 0

	for {
		l, ok := workingLow.Lowest()
		if !ok {
			break
		}
		workingLow.Clear(l)

		bestV := -1
		bestDelta := 100

		for h := 0; h < len(c.PCPUs); h++ {
			if !workingHigh.Has(h) {
				continue
			}
			head := c.PCPUs[h].HeadIdx
			if head == noPCPU {
				continue
			}
			v := head
			for {
				if !vcpuRegressed.Has(v) {
					proj := c.PCPUs[l].Util + c.VCPUs[v].Util
					delta := absInt(cfg.Target - proj)
					if delta < bestDelta && proj < cfg.HighThresh {
						bestV = v
						bestDelta = delta
					}
				}
				v = c.VCPUs[v].NextIdx
				if v == head {
					break
				}
			}
		}

		if bestV != -1 {
			origin := c.VCPUs[bestV].PCPU
			c.HighMask.Clear(origin)
			if err := pin(ctx, c, bestV, l); err != nil {
				return migrations, err
			}
			migrations++
		}
	}

	return migrations, nil
}
