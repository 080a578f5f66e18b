package cpusched

import "github.com/virtloop/retune/internal/bitset"

// Classify recomputes HighMask and LowMask from scratch (spec §4.3: stale
// bits cleared first). A pCPU whose idle counter regressed this tick is
// excluded from both masks regardless of its (stale) utilization.
func Classify(c *Context, cfg *Config, regressed bitset.Set) {
	c.HighMask.Reset()
	c.LowMask.Reset()

	for i := range c.PCPUs {
		if regressed.Has(i) {
			continue
		}
		p := &c.PCPUs[i]
		switch {
		case p.Util > cfg.HighThresh && p.NumPinned > 1:
			c.HighMask.SetBit(i)
		case p.Util < cfg.LowThresh:
			c.LowMask.SetBit(i)
		}
	}
}
