// Package units gives KiB-denominated values (the wire unit every
// host-interface memory call uses) a MiB conversion for display, the way
// the teacher's pkg/types.Bytes gives byte counts a human-readable form.
package units

// KiB is a size in kibibytes, the unit internal/hostiface and
// internal/memcoord exchange memory figures in.
type KiB uint64

// MiB converts to mebibytes for display (spec §6.4 debug trace format).
func (k KiB) MiB() float64 { return float64(k) / 1024 }
