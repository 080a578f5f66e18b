package hostiface

import (
	"context"
	"fmt"
)

// FakeGuest is a deterministic GuestHandle for tests.
type FakeGuest struct {
	GuestName string
}

// Name implements GuestHandle.
func (g *FakeGuest) Name() string { return g.GuestName }

// FakeHost is a fully in-memory, deterministic HostInterface used by the
// cpusched and memcoord test suites (spec §9: "deterministic fake adapter
// exercising every branch"). All telemetry is driven by directly setting
// the exported fields; per-call errors can be injected via the Err* fields:
// a single error for each host-wide call, and maps keyed by guest index
// (or by pCPU index for ErrPCPUIdle) for per-entity calls.
type FakeHost struct {
	Guests []*FakeGuest

	HostFree  uint64
	HostTotal uint64

	// PCPUIdle[i] is the idle-ns counter PCPUIdleNs(i) returns next.
	PCPUIdle []uint64

	// VCPU[i] is the VCPUInfo for Guests[i]'s vCPU.
	VCPU []VCPUInfo

	// MemStats[i] is the tagged balloon-stats list for Guests[i].
	MemStats [][]MemStat

	// MaxMem[i] is GuestMaxMemKiB's return value for Guests[i].
	MaxMem []uint64

	// Pinned records the last cpumap passed to GuestPinVCPU, by guest index.
	Pinned []uint64

	// SetMem records the last value passed to GuestSetMemoryKiB, by guest index.
	SetMem []uint64

	// Injected errors, nil unless a test wants a specific call to fail.
	ErrConnect      error
	ErrList         error
	ErrHostFree     error
	ErrHostTotal    error
	ErrNumPCPUs     error
	ErrPCPUIdle     map[int]error
	ErrGuestInfo    map[int]error
	ErrPin          map[int]error
	ErrMemStatsPd   map[int]error
	ErrMemStats     map[int]error
	ErrMaxMem       map[int]error
	ErrSetMem       map[int]error

	Connected bool
	Closed    bool
}

// NewFakeHost returns an empty FakeHost ready to be populated by a test.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		ErrPCPUIdle:   make(map[int]error),
		ErrGuestInfo:  make(map[int]error),
		ErrPin:        make(map[int]error),
		ErrMemStatsPd: make(map[int]error),
		ErrMemStats:   make(map[int]error),
		ErrMaxMem:     make(map[int]error),
		ErrSetMem:     make(map[int]error),
	}
}

func (f *FakeHost) Connect(ctx context.Context, uri string) error {
	if f.ErrConnect != nil {
		return fmt.Errorf("%w: %v", ErrConn, f.ErrConnect)
	}
	f.Connected = true
	return nil
}

func (f *FakeHost) ListActiveGuests(ctx context.Context) ([]GuestHandle, error) {
	if f.ErrList != nil {
		return nil, fmt.Errorf("%w: %v", ErrList, f.ErrList)
	}
	if len(f.Guests) == 0 {
		return nil, ErrNoGuests
	}
	out := make([]GuestHandle, len(f.Guests))
	for i, g := range f.Guests {
		out[i] = g
	}
	return out, nil
}

func (f *FakeHost) HostFreeKiB(ctx context.Context) (uint64, error) {
	if f.ErrHostFree != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostFree, f.ErrHostFree)
	}
	return f.HostFree, nil
}

func (f *FakeHost) HostTotalKiB(ctx context.Context) (uint64, error) {
	if f.ErrHostTotal != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, f.ErrHostTotal)
	}
	return f.HostTotal, nil
}

func (f *FakeHost) NumPCPUs(ctx context.Context) (int, error) {
	if f.ErrNumPCPUs != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, f.ErrNumPCPUs)
	}
	return len(f.PCPUIdle), nil
}

func (f *FakeHost) PCPUIdleNs(ctx context.Context, pcpu int) (uint64, error) {
	if err, ok := f.ErrPCPUIdle[pcpu]; ok && err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPcpuIdle, err)
	}
	if pcpu < 0 || pcpu >= len(f.PCPUIdle) {
		return 0, fmt.Errorf("%w: pcpu %d out of range", ErrPcpuIdle, pcpu)
	}
	return f.PCPUIdle[pcpu], nil
}

func (f *FakeHost) indexOf(g GuestHandle) int {
	for i, fg := range f.Guests {
		if fg == g {
			return i
		}
	}
	return -1
}

func (f *FakeHost) GuestVCPUInfo(ctx context.Context, g GuestHandle) (VCPUInfo, error) {
	i := f.indexOf(g)
	if err, ok := f.ErrGuestInfo[i]; ok && err != nil {
		return VCPUInfo{}, fmt.Errorf("%w: %v", ErrGuestInfo, err)
	}
	if i < 0 || i >= len(f.VCPU) {
		return VCPUInfo{}, fmt.Errorf("%w: unknown guest", ErrGuestInfo)
	}
	return f.VCPU[i], nil
}

func (f *FakeHost) GuestPinVCPU(ctx context.Context, g GuestHandle, vcpuIdx int, cpumap uint64) error {
	i := f.indexOf(g)
	if err, ok := f.ErrPin[i]; ok && err != nil {
		return fmt.Errorf("%w: %v", ErrPin, err)
	}
	if i < 0 {
		return fmt.Errorf("%w: unknown guest", ErrPin)
	}
	if f.Pinned == nil {
		f.Pinned = make([]uint64, len(f.Guests))
	}
	f.Pinned[i] = cpumap
	if i < len(f.VCPU) {
		// reflect the pin in VCPU info so a subsequent sample sees it.
		for p := 0; p < 64; p++ {
			if cpumap&(1<<uint(p)) != 0 {
				f.VCPU[i].PCPU = p
				break
			}
		}
	}
	return nil
}

func (f *FakeHost) GuestSetMemStatsPeriod(ctx context.Context, g GuestHandle, seconds int) error {
	i := f.indexOf(g)
	if err, ok := f.ErrMemStatsPd[i]; ok && err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	return nil
}

func (f *FakeHost) GuestMemStats(ctx context.Context, g GuestHandle) ([]MemStat, error) {
	i := f.indexOf(g)
	if err, ok := f.ErrMemStats[i]; ok && err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	if i < 0 || i >= len(f.MemStats) {
		return nil, fmt.Errorf("%w: unknown guest", ErrGuestMem)
	}
	return f.MemStats[i], nil
}

func (f *FakeHost) GuestMaxMemKiB(ctx context.Context, g GuestHandle) (uint64, error) {
	i := f.indexOf(g)
	if err, ok := f.ErrMaxMem[i]; ok && err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	if i < 0 || i >= len(f.MaxMem) {
		return 0, fmt.Errorf("%w: unknown guest", ErrGuestMem)
	}
	return f.MaxMem[i], nil
}

func (f *FakeHost) GuestSetMemoryKiB(ctx context.Context, g GuestHandle, kib uint64) error {
	i := f.indexOf(g)
	if err, ok := f.ErrSetMem[i]; ok && err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	if i < 0 {
		return fmt.Errorf("%w: unknown guest", ErrGuestMem)
	}
	if f.SetMem == nil {
		f.SetMem = make([]uint64, len(f.Guests))
	}
	f.SetMem[i] = kib
	if i < len(f.MemStats) {
		for j := range f.MemStats[i] {
			if f.MemStats[i][j].Tag == MemStatActualBalloon {
				f.MemStats[i][j].Value = kib
			}
		}
	}
	return nil
}

func (f *FakeHost) ReleaseGuest(ctx context.Context, g GuestHandle) {}

func (f *FakeHost) Close(ctx context.Context) { f.Closed = true }
