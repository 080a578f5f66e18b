package memcoord

import "errors"

// ErrTooManyGuests guards the bitset domain (spec Non-goal: no more than
// 32 guests) and maps to exit code -4, "out of memory allocating internal
// tables" (spec §6.2), since the fixed-capacity arena is the internal
// table in question.
var ErrTooManyGuests = errors.New("memcoord: unsupported guest count")
