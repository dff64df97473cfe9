package sensor

import (
	"context"
	"time"

	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"golang.org/x/sync/errgroup"
)

// Suite reads a fixed set of sensors once per cycle. Reads are issued
// concurrently and individually bounded by the timeout, so one hung
// device cannot stall a cycle.
type Suite struct {
	sensors []Sensor
	timeout time.Duration
}

func NewSuite(timeout time.Duration, sensors ...Sensor) *Suite {
	return &Suite{
		sensors: sensors,
		timeout: timeout,
	}
}

// Types returns the identifiers of all configured sensors.
func (s *Suite) Types() []string {
	types := make([]string, len(s.sensors))
	for i, sn := range s.sensors {
		types[i] = sn.Type()
	}

	return types
}

// ReadAll produces exactly one Reading per configured sensor. A failed
// or timed-out read yields an error Reading; it never blocks or fails
// the other sensors.
func (s *Suite) ReadAll(ctx context.Context) []Reading {
	readings := make([]Reading, len(s.sensors))

	g, ctx := errgroup.WithContext(ctx)
	for i, sn := range s.sensors {
		i, sn := i, sn
		g.Go(func() error {
			temp, err := s.readOne(ctx, sn)
			readings[i] = Reading{
				Type:        sn.Type(),
				Temperature: temp,
				Err:         err,
			}

			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines report failures via Readings

	return readings
}

func (s *Suite) readOne(ctx context.Context, sn Sensor) (float64, error) {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		temp float64
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		temp, err := sn.Read(ctx)
		ch <- result{temp: temp, err: err}
	}()

	select {
	case r := <-ch:
		return r.temp, r.err
	case <-ctx.Done():
		return 0, errFactory.Wrap(ErrReadTimeout, ctx.Err()).
			WithMessage("sensor " + sn.Type() + " read timed out")
	}
}

// Composite reduces one cycle's readings to the worst-case temperature.
// The second return value is false when no reading succeeded; the
// caller must then hold the previous fan level rather than treat the
// outage as zero degrees.
func Composite(readings []Reading) (float64, bool) {
	var (
		max   float64
		valid bool
	)

	for _, r := range readings {
		if !r.OK() {
			continue
		}
		if !valid || r.Temperature > max {
			max = r.Temperature
		}
		valid = true
	}

	return max, valid
}
