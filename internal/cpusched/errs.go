package cpusched

import "errors"

// ErrTooManyGuests and ErrTooManyPCPUs guard the bitset domain (spec
// Non-goal: no more than 32 guests or pCPUs); both map to exit code -4,
// "out of memory allocating internal tables" (spec §6.2).
var (
	ErrTooManyGuests = errors.New("cpusched: unsupported guest count")
	ErrTooManyPCPUs  = errors.New("cpusched: unsupported pcpu count")
)
