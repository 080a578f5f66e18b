package memcoord

import (
	"context"
	"io"
	"time"

	"github.com/virtloop/retune/internal/hostiface"
	"github.com/virtloop/retune/internal/retunelog"
	"github.com/virtloop/retune/internal/trace"
	"github.com/virtloop/retune/internal/units"
)

// Run drives the memory coordinator's sense/decide/act loop (spec §4.9
// applied to memory): sleep period, sample, classify, adjust, optionally
// trace, repeat. Returns the first fatal error (nil on clean ctx
// cancellation); always tears down the context on the way out.
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
			if err := tick(ctx, c, cfg, debugOut); err != nil {
				return err
			}
		}
	}
}

func tick(ctx context.Context, c *Context, cfg *Config, debugOut io.Writer) error {
	res, err := Sample(ctx, c)
	if err != nil {
		if cfg.FatalOnSampleError {
			return err
		}
		retunelog.TickError("memcoord", err)
		return nil
	}

	Classify(c, cfg, res.Skipped)

	if err := Adjust(ctx, c, cfg); err != nil {
		return err
	}

	if debugOut != nil {
		renderTrace(debugOut, c)
	}
	return nil
}

func renderTrace(w io.Writer, c *Context) {
	guests := make([]trace.MemGuestRow, len(c.Guests))
	for i, g := range c.Guests {
		guests[i] = trace.MemGuestRow{
			Name:    g.Handle.Name(),
			Balloon: units.KiB(c.Mem[i].Total),
			Free:    units.KiB(c.Mem[i].Free),
			Percent: c.Mem[i].Percent,
		}
	}
	trace.RenderMem(w, units.KiB(c.HostFree), guests)
}
