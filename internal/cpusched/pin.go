package cpusched

import "context"

// pin is the only mutator of the ownership graph (spec §4.5). vcpuIdx and
// pcpuIdx are indices into c.VCPUs / c.PCPUs. On a GuestPinVCPU failure,
// all structures are left untouched and the error propagates (spec:
// "PinError aborts the tick and propagates").
func pin(ctx context.Context, c *Context, vcpuIdx, pcpuIdx int) error {
	v := &c.VCPUs[vcpuIdx]
	p := &c.PCPUs[pcpuIdx]

	if err := c.Iface.GuestPinVCPU(ctx, c.Guests[v.GuestIdx].Handle, 0, p.Mask); err != nil {
		return err
	}

	if v.PCPU != noPCPU {
		unpin(c, vcpuIdx, v.PCPU)
	}

	if p.HeadIdx == noPCPU {
		v.PrevIdx, v.NextIdx = vcpuIdx, vcpuIdx
		p.HeadIdx = vcpuIdx
	} else {
		head := &c.VCPUs[p.HeadIdx]
		tailIdx := head.PrevIdx
		tail := &c.VCPUs[tailIdx]

		tail.NextIdx = vcpuIdx
		v.PrevIdx = tailIdx
		v.NextIdx = p.HeadIdx
		head.PrevIdx = vcpuIdx
	}

	p.NumPinned++
	v.PCPU = pcpuIdx
	return nil
}

// unpin removes vcpuIdx from pcpuIdx's ring, adjusting neighbor links,
// decrementing NumPinned, and clearing HeadIdx once the ring empties
// (spec §4.5).
func unpin(c *Context, vcpuIdx, pcpuIdx int) {
	if pcpuIdx == noPCPU {
		return
	}
	v := &c.VCPUs[vcpuIdx]
	p := &c.PCPUs[pcpuIdx]

	if p.NumPinned == 1 {
		p.HeadIdx = noPCPU
	} else {
		prev := &c.VCPUs[v.PrevIdx]
		next := &c.VCPUs[v.NextIdx]
		prev.NextIdx = v.NextIdx
		next.PrevIdx = v.PrevIdx
		if p.HeadIdx == vcpuIdx {
			p.HeadIdx = v.NextIdx
		}
	}

	v.PrevIdx, v.NextIdx = noPCPU, noPCPU
	p.NumPinned--
}
