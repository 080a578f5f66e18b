// Package trace renders the human-readable debug blocks spec §6.4
// describes, one per daemon. Output is informational, not machine-parsed,
// and mirrors the teacher's tabwriter-based table printing.
package trace

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/virtloop/retune/internal/units"
)

// CPUPCPURow is one pCPU line of the CPU-daemon trace block.
type CPUPCPURow struct {
	ID   int
	Util int
}

// CPUGuestRow is one guest line of the CPU-daemon trace block.
type CPUGuestRow struct {
	Name string
	PCPU int
	Util int
}

// RenderCPU writes one tick's CPU-daemon debug block (spec §6.4: "per-pCPU
// utilization and per-guest (name, pinned pCPU, utilization)").
func RenderCPU(w io.Writer, pcpus []CPUPCPURow, guests []CPUGuestRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PCPU\tUTIL%")
	for _, p := range pcpus {
		fmt.Fprintf(tw, "%d\t%d\n", p.ID, p.Util)
	}
	fmt.Fprintln(tw, "GUEST\tPCPU\tUTIL%")
	for _, g := range guests {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", g.Name, g.PCPU, g.Util)
	}
	tw.Flush()
}

// MemGuestRow is one guest line of the memory-daemon trace block. Balloon
// and Free are KiB, the unit the memory coordinator samples in; the
// renderer converts to MiB for display.
type MemGuestRow struct {
	Name    string
	Balloon units.KiB
	Free    units.KiB
	Percent int
}

// RenderMem writes one tick's memory-daemon debug block (spec §6.4:
// "host free MiB and per-guest (name, balloon MiB, free MiB, percent)").
func RenderMem(w io.Writer, hostFree units.KiB, guests []MemGuestRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "HOST FREE\t%.1f MiB\n", hostFree.MiB())
	fmt.Fprintln(tw, "GUEST\tBALLOON(MiB)\tFREE(MiB)\tPCT")
	for _, g := range guests {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d\n", g.Name, g.Balloon.MiB(), g.Free.MiB(), g.Percent)
	}
	tw.Flush()
}
