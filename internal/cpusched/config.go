package cpusched

// Config holds the CPU scheduler's tunable thresholds (spec §4.3), all
// expressed as whole percent.
type Config struct {
	// HighThresh: a pCPU above this utilization is a migration-from
	// candidate (spec: "hot").
	HighThresh int
	// LowThresh: a pCPU below this utilization is a migration-to
	// candidate (spec: "cold").
	LowThresh int
	// Target: the utilization a migration should land a receiving pCPU
	// closest to.
	Target int

	// FatalOnSampleError: when true (default, matches the source's
	// behavior), a per-tick sample error terminates the loop. When
	// false, the tick is skipped and the loop continues (spec §7/§9
	// open question on error strategy).
	FatalOnSampleError bool
}

// DefaultConfig returns the literal threshold values from spec §4.3.
func DefaultConfig() *Config {
	return &Config{
		HighThresh:         90,
		LowThresh:          70,
		Target:             80,
		FatalOnSampleError: true,
	}
}
