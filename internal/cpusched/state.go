// Package cpusched implements the CPU scheduler's decision logic: per-tick
// utilization sampling, hot/cold pCPU classification, and the best-fit
// vCPU migration planner that drives the host toward a stable balanced
// state (spec §4.2-§4.5, §8 scenarios 1-3).
package cpusched

import (
	"context"
	"fmt"

	"github.com/virtloop/retune/internal/bitset"
	"github.com/virtloop/retune/internal/hostiface"
)

// noPCPU marks a ring-link index with no neighbor.
const noPCPU = -1

// Guest is one active guest captured at init time (spec §3 "Guest").
type Guest struct {
	Handle hostiface.GuestHandle
	Index  int // position in Context.Guests, also this guest's VCPU index
}

// PCPU is one physical CPU record (spec §3 "pCPU record").
type PCPU struct {
	ID         int
	Mask       uint64 // affinity mask with only bit ID set
	IdlePrev   uint64 // last observed idle-time counter, ns
	Util       int    // last computed utilization, 0..100
	NumPinned  int
	HeadIdx    int // index into Context.VCPUs of the ring head, or noPCPU
}

// VCPU is one guest's (single) virtual CPU record (spec §3 "vCPU record").
// The ring is expressed as an arena with indices (spec §9), not pointers:
// PrevIdx/NextIdx index into Context.VCPUs.
type VCPU struct {
	GuestIdx int // back-pointer to Context.Guests
	RunPrev  uint64
	Util     int
	PCPU     int // index into Context.PCPUs this vCPU is pinned to, or noPCPU
	PrevIdx  int
	NextIdx  int
}

// Context is the CPU scheduler's explicit owned state (spec §9: replaces
// the "process-wide singleton" pattern). Created by Init, mutated only by
// the loop goroutine, destroyed by Teardown.
type Context struct {
	Iface  hostiface.HostInterface
	Guests []Guest
	PCPUs  []PCPU
	VCPUs  []VCPU // VCPUs[i] belongs to Guests[i]

	HighMask bitset.Set
	LowMask  bitset.Set
}

// Init connects to the hypervisor, enumerates active guests and pCPUs,
// and pins each guest i to pCPU i mod NumPCPUs (spec §4.5 "Initial
// placement"). Returns the context and a sentinel error from
// internal/hostiface on any setup failure, per spec §7.
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
	numPCPUs, err := iface.NumPCPUs(ctx)
	if err != nil {
		iface.Close(ctx)
		return nil, err
	}
	if numPCPUs <= 0 || numPCPUs > bitset.MaxLen {
		iface.Close(ctx)
		return nil, fmt.Errorf("%w: %d pcpus", ErrTooManyPCPUs, numPCPUs)
	}
	if len(guests) > bitset.MaxLen {
		iface.Close(ctx)
		return nil, fmt.Errorf("%w: %d guests", ErrTooManyGuests, len(guests))
	}

	c := &Context{
		Iface: iface,
	}
	c.Guests = make([]Guest, len(guests))
	c.VCPUs = make([]VCPU, len(guests))
	c.PCPUs = make([]PCPU, numPCPUs)

	for i := range c.PCPUs {
		idle, err := iface.PCPUIdleNs(ctx, i)
		if err != nil {
			iface.Close(ctx)
			return nil, err
		}
		c.PCPUs[i] = PCPU{ID: i, Mask: 1 << uint(i), IdlePrev: idle, HeadIdx: noPCPU}
	}

	for i, g := range guests {
		c.Guests[i] = Guest{Handle: g, Index: i}
		info, err := iface.GuestVCPUInfo(ctx, g)
		if err != nil {
			iface.Close(ctx)
			return nil, err
		}
		c.VCPUs[i] = VCPU{GuestIdx: i, RunPrev: info.RunNs, PCPU: noPCPU, PrevIdx: noPCPU, NextIdx: noPCPU}
	}

	for i := range c.Guests {
		target := i % numPCPUs
		if err := pin(ctx, c, i, target); err != nil {
			iface.Close(ctx)
			return nil, err
		}
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
