// Command cpuschedd periodically repins guest vCPUs to balance pCPU
// utilization across the host (spec §4.2-§4.5).
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

	"github.com/virtloop/retune/internal/cpusched"
	"github.com/virtloop/retune/internal/hostiface"
	"github.com/virtloop/retune/internal/retunelog"
)

func main() {
	cfg := cpusched.DefaultConfig()
	var debug bool
	var uri string

	root := &cobra.Command{
		Use:   "cpuschedd <interval>",
		Short: "Host CPU scheduler: rebalances vCPU-to-pCPU pinning",
		Long: `cpuschedd samples per-pCPU and per-vCPU utilization every <interval>
seconds, classifies pCPUs as hot or cold, and migrates vCPUs from hot to
cold pCPUs via a best-fit bin-packing pass until the host is balanced.

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

	root.Flags().IntVar(&cfg.HighThresh, "high-thresh", cfg.HighThresh, "pCPU utilization percent above which it is hot")
	root.Flags().IntVar(&cfg.LowThresh, "low-thresh", cfg.LowThresh, "pCPU utilization percent below which it is cold")
	root.Flags().IntVar(&cfg.Target, "target", cfg.Target, "utilization percent a migration should land a cold pCPU closest to")
	root.Flags().BoolVar(&cfg.FatalOnSampleError, "fatal-on-sample-error", cfg.FatalOnSampleError, "exit the loop on a per-tick sample error instead of skipping the tick")
	root.Flags().StringVar(&uri, "uri", "", "hypervisor connection URI (default: local qemu:///system session)")
	root.Flags().BoolVar(&debug, "debug", false, "print a per-tick utilization trace to stdout")

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

func run(ctx context.Context, cfg *cpusched.Config, uri string, period time.Duration, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	iface := hostiface.NewLibvirtHost()

	var debugOut io.Writer
	if debug {
		debugOut = os.Stdout
	}

	err := cpusched.Run(ctx, iface, uri, cfg, period, debugOut)
	if err != nil {
		retunelog.Fatal("cpuschedd", err, exitCodeFor(err))
	}
	return err
}

// exitCodeFor maps a returned error to the numeric exit codes of spec
// §6.2. Any error cpusched itself raises about the bitset domain being
// exceeded ("too many guests/pcpus") is an internal-table allocation
// failure in spec terms: code -4.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code := hostiface.ExitCode(err); code != 0 {
		return code
	}
	switch {
	case errors.Is(err, cpusched.ErrTooManyGuests), errors.Is(err, cpusched.ErrTooManyPCPUs):
		return -4
	default:
		return 1
	}
}
