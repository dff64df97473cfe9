package fan

// Level is the discrete commanded fan speed. It is ordered: comparisons
// between levels follow their cooling power.
type Level int

const (
	LevelOff Level = iota
	Level1
	Level2
	Level3
	Level4
)

const levelStep = 25

// Percent returns the fan speed for the level as a percentage.
func (l Level) Percent() float64 {
	return float64(l) * levelStep
}

// DutyCycle returns the PWM duty cycle fraction for the level.
func (l Level) DutyCycle() float64 {
	return float64(l) * levelStep / 100
}

// Enabled reports whether the fan power rail should be on at this level.
func (l Level) Enabled() bool {
	return l > LevelOff
}

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case Level1:
		return "level1"
	case Level2:
		return "level2"
	case Level3:
		return "level3"
	case Level4:
		return "level4"
	default:
		return "unknown"
	}
}
