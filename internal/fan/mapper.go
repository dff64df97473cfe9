package fan

import "github.com/tolkonepiu/rockpi-poe-controller/internal/errors"

// Thresholds holds the temperatures (°C) at which the fan enters
// levels 1 through 4.
type Thresholds struct {
	LV0, LV1, LV2, LV3 float64
}

func (t Thresholds) Validate() error {
	errFactory := errors.New()

	if !(t.LV0 < t.LV1 && t.LV1 < t.LV2 && t.LV2 < t.LV3) {
		return errFactory.WithData(ErrInvalidThresholds,
			[]float64{t.LV0, t.LV1, t.LV2, t.LV3})
	}

	return nil
}

// boundary returns the entry threshold for a level. LevelOff has no
// entry threshold; callers never ask for it.
func (t Thresholds) boundary(l Level) float64 {
	switch l {
	case Level1:
		return t.LV0
	case Level2:
		return t.LV1
	case Level3:
		return t.LV2
	default:
		return t.LV3
	}
}

// levelFor returns the highest level whose entry threshold the
// temperature meets. A temperature exactly on a threshold meets it.
func (t Thresholds) levelFor(temperature float64) Level {
	switch {
	case temperature >= t.LV3:
		return Level4
	case temperature >= t.LV2:
		return Level3
	case temperature >= t.LV1:
		return Level2
	case temperature >= t.LV0:
		return Level1
	default:
		return LevelOff
	}
}

// Mapper maps composite temperatures to fan levels with asymmetric
// hysteresis: raising a level uses the entry threshold unmodified,
// lowering requires the temperature to cool below the current level's
// entry threshold by more than the margin. This bounds flapping near a
// threshold to one change per temperature excursion exceeding twice
// the margin.
type Mapper struct {
	thresholds Thresholds
	hysteresis float64
	level      Level
}

func NewMapper(thresholds Thresholds, hysteresis float64) (*Mapper, error) {
	errFactory := errors.New()

	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	if hysteresis < 0 {
		return nil, errFactory.WithData(ErrInvalidHysteresis, hysteresis)
	}

	return &Mapper{
		thresholds: thresholds,
		hysteresis: hysteresis,
		level:      LevelOff,
	}, nil
}

// Level returns the current fan level.
func (m *Mapper) Level() Level {
	return m.level
}

// Update advances the state machine with a new composite temperature
// and reports the resulting level and whether it changed.
func (m *Mapper) Update(temperature float64) (Level, bool) {
	target := m.thresholds.levelFor(temperature)
	previous := m.level

	switch {
	case target > m.level:
		m.level = target
	case target < m.level:
		if temperature < m.thresholds.boundary(m.level)-m.hysteresis {
			m.level = target
		}
	}

	return m.level, m.level != previous
}
