package memcoord

import "github.com/virtloop/retune/internal/bitset"

// Classify recomputes HighMemMask and LowMemMask from scratch (spec §4.7:
// "must be reset before reclassification each tick"). A guest whose
// mem_total sampled as zero this tick is excluded from both masks (spec
// §4.6: "skip classification for that guest").
func Classify(c *Context, cfg *Config, skipped bitset.Set) {
	c.HighMemMask.Reset()
	c.LowMemMask.Reset()

	for i := range c.Mem {
		if skipped.Has(i) {
			continue
		}
		m := &c.Mem[i]
		switch {
		case m.Percent > cfg.GuestHigh:
			c.HighMemMask.SetBit(i)
		case m.Percent < cfg.GuestLow && m.Total < m.Max:
			c.LowMemMask.SetBit(i)
		}
	}
}
