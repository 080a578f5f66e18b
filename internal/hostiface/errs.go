package hostiface

import "errors"

var (
	// ErrConn indicates the hypervisor connection could not be opened.
	ErrConn = errors.New("hostiface: connect failed")

	// ErrNoGuests indicates the hypervisor reported zero active guests.
	ErrNoGuests = errors.New("hostiface: no active guests")

	// ErrList indicates the active-guest list could not be retrieved.
	ErrList = errors.New("hostiface: list active guests failed")

	// ErrHostInfo indicates host-level static info (total memory, pCPU count)
	// could not be retrieved.
	ErrHostInfo = errors.New("hostiface: host info query failed")

	// ErrHostFree indicates the host free-memory query failed.
	ErrHostFree = errors.New("hostiface: host free memory query failed")

	// ErrPcpuIdle indicates a pCPU idle-time counter read failed.
	ErrPcpuIdle = errors.New("hostiface: pcpu idle counter read failed")

	// ErrGuestInfo indicates a per-guest vCPU info query failed.
	ErrGuestInfo = errors.New("hostiface: guest vcpu info query failed")

	// ErrGuestMem indicates a per-guest memory-stats or max-memory query failed.
	ErrGuestMem = errors.New("hostiface: guest memory query failed")

	// ErrPin indicates a vCPU pin/affinity request failed.
	ErrPin = errors.New("hostiface: pin vcpu failed")

	// ErrCounterRegression indicates a monotonic counter moved backwards
	// between samples; the tick must skip classification for that entity.
	ErrCounterRegression = errors.New("hostiface: monotonic counter regressed")
)

// ExitCode maps a sentinel error from this package to the numeric exit
// code of spec §6.2. Errors not recognized here return 0 (not this
// package's concern).
func ExitCode(err error) int {
	switch {
	case errors.Is(err, ErrConn):
		return -1
	case errors.Is(err, ErrNoGuests):
		return -2
	case errors.Is(err, ErrList):
		return -3
	case errors.Is(err, ErrGuestInfo), errors.Is(err, ErrGuestMem), errors.Is(err, ErrPin):
		return -5
	case errors.Is(err, ErrHostFree), errors.Is(err, ErrPcpuIdle), errors.Is(err, ErrHostInfo):
		return -6
	default:
		return 0
	}
}
