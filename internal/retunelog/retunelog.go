// Package retunelog holds the small set of structured-logging helpers
// shared by both daemons, built directly on log/slog the way the teacher
// uses it in cmd/consumption/main.go.
package retunelog

import (
	"log/slog"

	"github.com/virtloop/retune/internal/hostiface"
)

// TickError logs a recoverable per-tick sample error (skip-tick mode).
func TickError(daemon string, err error) {
	slog.Warn("tick sample error", "daemon", daemon, "err", err)
}

// CounterRegressed logs that one entity's monotonic counter moved
// backwards this tick and was excluded from classification.
func CounterRegressed(daemon, entity string, index int) {
	slog.Warn("counter regressed", "daemon", daemon, "entity", entity, "index", index, "err", hostiface.ErrCounterRegression)
}

// Fatal logs a fatal setup or per-tick error before the daemon exits.
func Fatal(daemon string, err error, code int) {
	slog.Error("fatal error", "daemon", daemon, "err", err, "exit_code", code)
}

// Migrations logs how many vCPU migrations a CPU-scheduler tick performed.
func Migrations(n int) {
	if n > 0 {
		slog.Info("migrated vcpus", "count", n)
	}
}

// MemAdjust logs a single guest memory adjustment.
func MemAdjust(guest string, fromKiB, toKiB uint64) {
	slog.Info("adjusted guest memory", "guest", guest, "from_kib", fromKiB, "to_kib", toKiB)
}

// FairReclaim logs that the fair-reclaim branch fired this tick.
func FairReclaim(shortfallPct int) {
	slog.Info("fair reclaim triggered", "shortfall_pct", shortfallPct)
}
