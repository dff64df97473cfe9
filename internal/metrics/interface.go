package metrics

// Snapshot is one cycle's worth of observable state. The control loop
// publishes a complete snapshot at the end of each cycle; scrapes only
// ever see whole snapshots.
type Snapshot struct {
	// Temperatures holds the last known reading per sensor type.
	Temperatures map[string]float64

	// Composite is the worst-case temperature the cycle acted on.
	// Invalid while no cycle has produced data yet.
	Composite      float64
	CompositeValid bool

	FanSpeedPercent float64
	FanEnabled      bool

	// Cumulative counters, monotonic for the process lifetime.
	SpeedChanges uint64
	ReadErrors   map[string]uint64
	GPIOErrors   map[string]uint64
}

// Clone deep-copies the snapshot so the publisher can keep mutating
// its working copy.
func (s Snapshot) Clone() Snapshot {
	clone := s

	clone.Temperatures = make(map[string]float64, len(s.Temperatures))
	for k, v := range s.Temperatures {
		clone.Temperatures[k] = v
	}

	clone.ReadErrors = make(map[string]uint64, len(s.ReadErrors))
	for k, v := range s.ReadErrors {
		clone.ReadErrors[k] = v
	}

	clone.GPIOErrors = make(map[string]uint64, len(s.GPIOErrors))
	for k, v := range s.GPIOErrors {
		clone.GPIOErrors[k] = v
	}

	return clone
}
