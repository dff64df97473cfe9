package sensor

import "context"

// Sensor reads a single thermal source.
type Sensor interface {
	// Type returns the stable identifier used for metric labels.
	Type() string

	// Available reports whether the underlying device exists.
	Available() bool

	// Read returns the current temperature in degrees Celsius.
	Read(ctx context.Context) (float64, error)
}

// Reading is the outcome of one sensor read within a cycle. Either
// Temperature or Err is meaningful, never both.
type Reading struct {
	Type        string
	Temperature float64
	Err         error
}

// OK reports whether the reading carries a usable temperature.
func (r Reading) OK() bool {
	return r.Err == nil
}
