package cpusched

import (
	"context"
	"io"
	"time"

	"github.com/virtloop/retune/internal/hostiface"
	"github.com/virtloop/retune/internal/retunelog"
	"github.com/virtloop/retune/internal/trace"
)

// Run drives the CPU scheduler's sense/decide/act loop (spec §4.9): sleep
// period, sample, classify, migrate, optionally trace, repeat. Returns the
// first fatal error (nil on clean ctx cancellation); always tears down the
// context on the way out.
func Run(ctx context.Context, iface hostiface.HostInterface, uri string, cfg *Config, period time.Duration, debugOut io.Writer) error {
	c, err := Init(ctx, iface, uri, cfg)
	if err != nil {
		return err
	}
	defer Teardown(ctx, c)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := tick(ctx, c, cfg, period, debugOut); err != nil {
				return err
			}
		}
	}
}

func tick(ctx context.Context, c *Context, cfg *Config, period time.Duration, debugOut io.Writer) error {
	res, err := Sample(ctx, c, period)
	if err != nil {
		if cfg.FatalOnSampleError {
			return err
		}
		retunelog.TickError("cpusched", err)
		return nil
	}

	Classify(c, cfg, res.PCPURegressed)

	n, err := Migrate(ctx, c, cfg, res.VCPURegressed)
	if err != nil {
		return err
	}
	retunelog.Migrations(n)

	if debugOut != nil {
		renderTrace(debugOut, c)
	}
	return nil
}

func renderTrace(w io.Writer, c *Context) {
	pcpus := make([]trace.CPUPCPURow, len(c.PCPUs))
	for i, p := range c.PCPUs {
		pcpus[i] = trace.CPUPCPURow{ID: p.ID, Util: p.Util}
	}
	guests := make([]trace.CPUGuestRow, len(c.Guests))
	for i, g := range c.Guests {
		guests[i] = trace.CPUGuestRow{
			Name: g.Handle.Name(),
			PCPU: c.VCPUs[i].PCPU,
			Util: c.VCPUs[i].Util,
		}
	}
	trace.RenderCPU(w, pcpus, guests)
}
