// Package memcoord implements the memory coordinator's decision logic:
// balloon-stats sampling, hungry/excess guest classification, and the
// proportional excess/hungry/fair-reclaim adjustment algorithm (spec
// §4.6-§4.8, §8 scenarios 4-6).
package memcoord

import (
	"context"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/hostiface"
)

const memStatsHz = 1 // spec §4.1: "request the guest balloon driver publish stats at 1 Hz"

// Guest is one active guest captured at init time.
type Guest struct {
	Handle hostiface.GuestHandle
	Index  int
}

// GuestMem is one guest's memory telemetry (spec §3 "GuestMem record").
type GuestMem struct {
	Total   uint64 // mem_total, KiB — last observed balloon size
	Free    uint64 // mem_free, KiB — last observed unused-in-guest
	Max     uint64 // mem_max, KiB — static configured maximum
	Percent int    // percent_avail, clamped to [0,100]
}

// Context is the memory coordinator's explicit owned state (spec §9).
type Context struct {
	Iface  hostiface.HostInterface
	Guests []Guest
	Mem    []GuestMem // Mem[i] belongs to Guests[i]

	HostFree  uint64
	HostTotal uint64

	HighMemMask bitset.Set
	LowMemMask  bitset.Set
}

// Init connects to the hypervisor, enumerates active guests, requests 1 Hz
// balloon-stats publication, and captures each guest's static maximum
// memory and the host's static total memory. Returns a sentinel error
// from internal/hostiface on any setup failure (spec §7).
func Init(ctx context.Context, iface hostiface.HostInterface, uri string, cfg *Config) (*Context, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := iface.Connect(ctx, uri); err != nil {
		return nil, err
	}
	guests, err := iface.ListActiveGuests(ctx)
	if err != nil {
		iface.Close(ctx)
		return nil, err
	}
	if len(guests) > bitset.MaxLen {
		iface.Close(ctx)
		return nil, ErrTooManyGuests
	}
	hostTotal, err := iface.HostTotalKiB(ctx)
	if err != nil {
		iface.Close(ctx)
		return nil, err
	}

	c := &Context{
		Iface:     iface,
		HostTotal: hostTotal,
	}
	c.Guests = make([]Guest, len(guests))
	c.Mem = make([]GuestMem, len(guests))

	for i, g := range guests {
		c.Guests[i] = Guest{Handle: g, Index: i}
		if err := iface.GuestSetMemStatsPeriod(ctx, g, memStatsHz); err != nil {
			iface.Close(ctx)
			return nil, err
		}
		maxMem, err := iface.GuestMaxMemKiB(ctx, g)
		if err != nil {
			iface.Close(ctx)
			return nil, err
		}
		c.Mem[i] = GuestMem{Max: maxMem}
	}

	return c, nil
}

// Teardown releases each guest handle, then closes the session, in that
// order (spec §9 lifecycle note).
func Teardown(ctx context.Context, c *Context) {
	for _, g := range c.Guests {
		c.Iface.ReleaseGuest(ctx, g.Handle)
	}
	c.Iface.Close(ctx)
}
