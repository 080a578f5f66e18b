// Command memcoordd periodically grows or shrinks guest memory via the
// balloon driver to keep both guests and the host within their memory
// budgets (spec §4.6-§4.8).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/virtloop/retune/internal/hostiface"
	"github.com/virtloop/retune/internal/memcoord"
	"github.com/virtloop/retune/internal/retunelog"
)

func main() {
	cfg := memcoord.DefaultConfig()
	var debug bool
	var uri string

	root := &cobra.Command{
		Use:   "memcoordd <interval>",
		Short: "Host memory coordinator: balloons guest memory to budget",
		Long: `memcoordd samples each guest's balloon-driver stats every <interval>
seconds, classifies guests as hungry or excess, reclaims from excess
guests before growing hungry ones, and falls back to a proportional
fair-reclaim pass across every guest when the host itself is under
memory pressure.

It connects to the local hypervisor system session; no credentials, no
remote endpoints.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parseInterval(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, uri, period, debug)
		},
	}

	root.Flags().IntVar(&cfg.HostLow, "host-low", cfg.HostLow, "host free-memory percent below which fair-reclaim engages")
	root.Flags().IntVar(&cfg.HostTgt, "host-tgt", cfg.HostTgt, "host free-memory percent fair-reclaim targets")
	root.Flags().IntVar(&cfg.GuestLow, "guest-low", cfg.GuestLow, "guest percent_avail below which a guest is hungry")
	root.Flags().IntVar(&cfg.GuestTgt, "guest-tgt", cfg.GuestTgt, "guest percent_avail an adjustment should land closest to")
	root.Flags().IntVar(&cfg.GuestHigh, "guest-high", cfg.GuestHigh, "guest percent_avail above which a guest is excess")
	root.Flags().BoolVar(&cfg.FatalOnSampleError, "fatal-on-sample-error", cfg.FatalOnSampleError, "exit the loop on a per-tick sample error instead of skipping the tick")
	root.Flags().StringVar(&uri, "uri", "", "hypervisor connection URI (default: local qemu:///system session)")
	root.Flags().BoolVar(&debug, "debug", false, "print a per-tick memory trace to stdout")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCodeFor(err))
	}
}

func parseInterval(raw string) (time.Duration, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("interval must be a positive integer number of seconds, got %q", raw)
	}
	return time.Duration(n) * time.Second, nil
}

func run(ctx context.Context, cfg *memcoord.Config, uri string, period time.Duration, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	iface := hostiface.NewLibvirtHost()

	var debugOut io.Writer
	if debug {
		debugOut = os.Stdout
	}

	err := memcoord.Run(ctx, iface, uri, cfg, period, debugOut)
	if err != nil {
		retunelog.Fatal("memcoordd", err, exitCodeFor(err))
	}
	return err
}

// exitCodeFor maps a returned error to the numeric exit codes of spec
// §6.2; memcoord.ErrTooManyGuests is the memory daemon's internal-table
// allocation failure, code -4.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code := hostiface.ExitCode(err); code != 0 {
		return code
	}
	if errors.Is(err, memcoord.ErrTooManyGuests) {
		return -4
	}
	return 1
}
