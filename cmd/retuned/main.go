// Command retuned runs the CPU scheduler and memory coordinator control
// loops concurrently in one process, each against its own hypervisor
// session (spec §5: "logically independent... no sharing of mutable
// state across daemons").
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
	"golang.org/x/sync/errgroup"

	"github.com/virtloop/retune/internal/cpusched"
	"github.com/virtloop/retune/internal/hostiface"
	"github.com/virtloop/retune/internal/memcoord"
	"github.com/virtloop/retune/internal/retunelog"
)

func main() {
	cpuCfg := cpusched.DefaultConfig()
	memCfg := memcoord.DefaultConfig()
	var debug bool
	var uri string

	root := &cobra.Command{
		Use:   "retuned <interval>",
		Short: "Runs the CPU scheduler and memory coordinator together",
		Long: `retuned starts both the CPU scheduler and the memory coordinator control
loops in one process, each on its own hypervisor session, sharing only
<interval> and the debug flag. A fatal error in either loop cancels the
other and retuned exits with that loop's code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parseInterval(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), cpuCfg, memCfg, uri, period, debug)
		},
	}

	root.Flags().IntVar(&cpuCfg.HighThresh, "cpu-high-thresh", cpuCfg.HighThresh, "pCPU utilization percent above which it is hot")
	root.Flags().IntVar(&cpuCfg.LowThresh, "cpu-low-thresh", cpuCfg.LowThresh, "pCPU utilization percent below which it is cold")
	root.Flags().IntVar(&cpuCfg.Target, "cpu-target", cpuCfg.Target, "utilization percent a migration should land a cold pCPU closest to")
	root.Flags().IntVar(&memCfg.HostLow, "mem-host-low", memCfg.HostLow, "host free-memory percent below which fair-reclaim engages")
	root.Flags().IntVar(&memCfg.HostTgt, "mem-host-tgt", memCfg.HostTgt, "host free-memory percent fair-reclaim targets")
	root.Flags().IntVar(&memCfg.GuestLow, "mem-guest-low", memCfg.GuestLow, "guest percent_avail below which a guest is hungry")
	root.Flags().IntVar(&memCfg.GuestTgt, "mem-guest-tgt", memCfg.GuestTgt, "guest percent_avail an adjustment should land closest to")
	root.Flags().IntVar(&memCfg.GuestHigh, "mem-guest-high", memCfg.GuestHigh, "guest percent_avail above which a guest is excess")
	root.Flags().StringVar(&uri, "uri", "", "hypervisor connection URI (default: local qemu:///system session)")
	root.Flags().BoolVar(&debug, "debug", false, "print per-tick traces from both loops to stdout")

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

func run(ctx context.Context, cpuCfg *cpusched.Config, memCfg *memcoord.Config, uri string, period time.Duration, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var debugOut io.Writer
	if debug {
		debugOut = os.Stdout
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		iface := hostiface.NewLibvirtHost()
		if err := cpusched.Run(gctx, iface, uri, cpuCfg, period, debugOut); err != nil {
			return fmt.Errorf("cpusched: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		iface := hostiface.NewLibvirtHost()
		if err := memcoord.Run(gctx, iface, uri, memCfg, period, debugOut); err != nil {
			return fmt.Errorf("memcoord: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		retunelog.Fatal("retuned", err, exitCodeFor(err))
	}
	return err
}

// exitCodeFor maps a returned error, wrapped with its originating loop's
// name, to the numeric exit codes of spec §6.2.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code := hostiface.ExitCode(err); code != 0 {
		return code
	}
	switch {
	case errors.Is(err, cpusched.ErrTooManyGuests), errors.Is(err, cpusched.ErrTooManyPCPUs),
		errors.Is(err, memcoord.ErrTooManyGuests):
		return -4
	default:
		return 1
	}
}
