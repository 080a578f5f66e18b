package memcoord

// Config holds the memory coordinator's tunable thresholds (spec §4.7),
// all expressed as whole percent of the respective total (host total
// memory, or the guest's current balloon size mem_total).
type Config struct {
	HostLow   int
	HostTgt   int
	GuestLow  int
	GuestTgt  int
	GuestHigh int

	// FatalOnSampleError mirrors cpusched.Config's field (spec §7/§9).
	FatalOnSampleError bool
}

// DefaultConfig returns the literal threshold values from spec §4.7.
func DefaultConfig() *Config {
	return &Config{
		HostLow:            10,
		HostTgt:            15,
		GuestLow:           25,
		GuestTgt:           30,
		GuestHigh:          33,
		FatalOnSampleError: true,
	}
}
