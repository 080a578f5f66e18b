package memcoord

import (
	"context"

	"github.com/virtloop/retune/internal/mathutil"
	"github.com/virtloop/retune/internal/retunelog"
)

// Adjust runs the excess pass, then the hungry pass (spec §4.8). Excess
// strictly precedes hungry within a tick (spec §5 ordering rule) so that
// memory freed by shrinking over-endowed guests is available to hungry
// ones in the same tick.
func Adjust(ctx context.Context, c *Context, cfg *Config) error {
	if err := excessPass(ctx, c, cfg); err != nil {
		return err
	}
	return hungryPass(ctx, c, cfg)
}

// excessPass reclaims from every guest currently marked excess (spec
// §4.8 "Excess pass").
func excessPass(ctx context.Context, c *Context, cfg *Config) error {
	for {
		g, ok := c.HighMemMask.Lowest()
		if !ok {
			break
		}
		m := &c.Mem[g]

		adj := int64(m.Total) * int64(m.Percent-cfg.GuestTgt) / 100
		adj = mathutil.ClampInt64(adj, 0, int64(m.Total))
		newTotal := m.Total - uint64(adj)

		if err := c.Iface.GuestSetMemoryKiB(ctx, c.Guests[g].Handle, newTotal); err != nil {
			return err
		}
		retunelog.MemAdjust(c.Guests[g].Handle.Name(), m.Total, newTotal)
		m.Total = newTotal
		c.HighMemMask.Clear(g)
	}
	return nil
}

// hungryPass grows every guest currently marked hungry, subject to host
// health, re-reading host_free before each candidate since the excess
// pass (and prior hungry-pass iterations) perturb it (spec §4.8 "Hungry
// pass").
func hungryPass(ctx context.Context, c *Context, cfg *Config) error {
	for {
		if c.LowMemMask.Empty() {
			break
		}

		hostFree, err := c.Iface.HostFreeKiB(ctx)
		if err != nil {
			return err
		}
		c.HostFree = hostFree

		g, ok := c.LowMemMask.Lowest()
		if !ok {
			break
		}
		m := &c.Mem[g]

		adj := int64(m.Total) * int64(cfg.GuestTgt-m.Percent) / 100
		if adj < 0 {
			adj = 0
		}

		hostFreeAfter := int64(c.HostFree) - adj
		hostFreeAfterPct := hostFreeAfter * 100 / int64(c.HostTotal)

		if hostFreeAfterPct > int64(cfg.HostLow) {
			newTotal := m.Total + uint64(adj)
			maxAllowed := m.Max
			if newTotal > maxAllowed {
				newTotal = maxAllowed
			}
			if err := c.Iface.GuestSetMemoryKiB(ctx, c.Guests[g].Handle, newTotal); err != nil {
				return err
			}
			retunelog.MemAdjust(c.Guests[g].Handle.Name(), m.Total, newTotal)
			m.Total = newTotal
			c.LowMemMask.Clear(g)
			continue
		}

		hostTgtKiB := int64(c.HostTotal) * int64(cfg.HostTgt) / 100
		if int64(c.HostFree) < hostTgtKiB {
			fairReclaim(ctx, c, hostTgtKiB)
			c.LowMemMask.Reset()
			break
		}

		c.LowMemMask.Clear(g)
	}
	return nil
}

// fairReclaim takes back memory from every guest, proportional to its
// share of host memory of the shortfall (spec §4.8 fair-reclaim branch).
// Per-guest set-memory errors are deliberately ignored (spec §7: "a
// single refusing guest does not block cluster-wide reclaim"); this
// branch fires at most once per tick, enforced by the caller resetting
// LowMemMask immediately after.
func fairReclaim(ctx context.Context, c *Context, hostTgtKiB int64) {
	shortfall := hostTgtKiB - int64(c.HostFree)
	if shortfall <= 0 {
		return
	}
	retunelog.FairReclaim(int(shortfall * 100 / int64(c.HostTotal)))

	for i := range c.Mem {
		m := &c.Mem[i]
		share := shortfall * 100 * int64(m.Total) / int64(c.HostTotal)
		adj := int64(m.Total) * share / 100
		adj = mathutil.ClampInt64(adj, 0, int64(m.Total))
		newTotal := m.Total - uint64(adj)

		// Best effort: ignore the error so one refusing guest can't
		// block reclaim for the rest.
		_ = c.Iface.GuestSetMemoryKiB(ctx, c.Guests[i].Handle, newTotal)
		retunelog.MemAdjust(c.Guests[i].Handle.Name(), m.Total, newTotal)
		m.Total = newTotal
	}
}
