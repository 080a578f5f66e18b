// Package mathutil holds the small numeric helpers both control loops
// need: percent clamping, two-sided integer clamping, and monotonic
// counter-delta sampling with regression detection.
package mathutil

// ClampPct keeps v within [0, 100] and narrows it to int, the percent
// domain every utilization and percent_avail value in this module lives
// in.
func ClampPct(v int64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

// ClampInt64 keeps v within [lo, hi].
func ClampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CounterDelta computes now-prev for a monotonic counter. Unlike a
// wraparound-tolerant delta that silently floors to zero, it reports
// regression explicitly: callers must skip classification for the
// owning entity this tick rather than act on a meaningless negative
// delta (spec §4.1's counter-regression rule).
func CounterDelta(now, prev uint64) (delta uint64, regressed bool) {
	if now < prev {
		return 0, true
	}
	return now - prev, false
}
