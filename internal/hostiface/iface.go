// Package hostiface defines the capability bundle the CPU scheduler and
// memory coordinator use to talk to a hypervisor, and the error taxonomy
// that maps onto the daemons' exit codes. The core control loops are
// agnostic to the transport: production code drives a real hypervisor
// through LibvirtHost, tests drive a deterministic FakeHost.
package hostiface

import "context"

// GuestHandle is an opaque reference to one active guest, stable for the
// lifetime of a daemon run (handles are captured once at init time; spec
// assumes no hot-add/remove of guests during a run).
type GuestHandle interface {
	// Name returns a human-readable guest name, used only by the debug
	// trace (spec §6.4); never used for identity or comparisons.
	Name() string
}

// MemStat is one tagged (tag, value) pair from a guest's balloon-driver
// stats, as spec §4.6 describes: the core matches tags by name, not by
// position in the list.
type MemStat struct {
	Tag   string
	Value uint64 // KiB
}

// Well-known balloon stat tags (spec §4.6).
const (
	MemStatActualBalloon = "actual_balloon" // current assigned memory (mem_total)
	MemStatUnused        = "unused"         // memory unused inside the guest (mem_free)
)

// VCPUInfo is the per-guest vCPU telemetry spec §4.1 requires:
// the pCPU currently bound and the cumulative vCPU run-time counter.
type VCPUInfo struct {
	PCPU   int    // physical CPU index this vCPU is currently bound to
	RunNs  uint64 // cumulative vCPU run-time, nanoseconds, monotonic
}

// HostInterface is the Go form of spec §4.1's capability table. Every
// method can fail; failures must be surfaced as one of this package's
// sentinel errors (wrapped with context via %w) so callers and tests can
// use errors.Is against them.
type HostInterface interface {
	// Connect opens a read/write session with the hypervisor at uri.
	Connect(ctx context.Context, uri string) error

	// ListActiveGuests returns an ordered list of handles for guests
	// currently running. Returns ErrNoGuests if the list is empty.
	ListActiveGuests(ctx context.Context) ([]GuestHandle, error)

	// HostFreeKiB returns host-node free memory in KiB.
	HostFreeKiB(ctx context.Context) (uint64, error)

	// HostTotalKiB returns host-node total memory in KiB.
	HostTotalKiB(ctx context.Context) (uint64, error)

	// NumPCPUs returns the count of physical CPUs.
	NumPCPUs(ctx context.Context) (int, error)

	// PCPUIdleNs returns the monotonic per-pCPU idle-time counter, ns.
	PCPUIdleNs(ctx context.Context, pcpu int) (uint64, error)

	// GuestVCPUInfo returns the current pCPU binding and cumulative
	// run-time of guest g's (single) vCPU.
	GuestVCPUInfo(ctx context.Context, g GuestHandle) (VCPUInfo, error)

	// GuestPinVCPU sets the affinity mask for one vCPU. cpumap has one
	// bit set per admissible pCPU (spec: singleton masks only).
	GuestPinVCPU(ctx context.Context, g GuestHandle, vcpuIdx int, cpumap uint64) error

	// GuestSetMemStatsPeriod requests the guest balloon driver publish
	// stats at the given period, in seconds (spec recommends 1 Hz).
	GuestSetMemStatsPeriod(ctx context.Context, g GuestHandle, seconds int) error

	// GuestMemStats returns the guest's tagged balloon-stats pairs.
	GuestMemStats(ctx context.Context, g GuestHandle) ([]MemStat, error)

	// GuestMaxMemKiB returns the guest's configured maximum memory.
	GuestMaxMemKiB(ctx context.Context, g GuestHandle) (uint64, error)

	// GuestSetMemoryKiB requests a new current memory size. Best effort:
	// callers in the fair-reclaim branch (spec §4.8) ignore this error.
	GuestSetMemoryKiB(ctx context.Context, g GuestHandle, kib uint64) error

	// ReleaseGuest releases a guest handle. Infallible by contract.
	ReleaseGuest(ctx context.Context, g GuestHandle)

	// Close tears down the session. Infallible by contract.
	Close(ctx context.Context)
}
