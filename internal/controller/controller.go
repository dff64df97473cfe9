package controller

import (
	"context"
	"time"

	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/fan"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/gpio"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/logger"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/metrics"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/sensor"
)

// Operation labels for the GPIO error counter.
const (
	opSetEnable    = "set_enable"
	opSetDutyCycle = "set_duty_cycle"
	opShutdown     = "shutdown"
)

// Controller runs the periodic read → aggregate → map → actuate →
// record cycle. It is the single writer of all observable state;
// everything it tracks reaches the outside world through the metrics
// registry.
type Controller struct {
	suite    *sensor.Suite
	mapper   *fan.Mapper
	actuator gpio.Actuator
	registry *metrics.Registry
	interval time.Duration

	temperatures   map[string]float64
	readErrors     map[string]uint64
	gpioErrors     map[string]uint64
	speedChanges   uint64
	composite      float64
	compositeValid bool
	applied        bool
}

func New(
	suite *sensor.Suite,
	mapper *fan.Mapper,
	actuator gpio.Actuator,
	registry *metrics.Registry,
	interval time.Duration,
) (*Controller, error) {
	errFactory := errors.New()

	if interval <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidInterval, interval)
	}

	return &Controller{
		suite:        suite,
		mapper:       mapper,
		actuator:     actuator,
		registry:     registry,
		interval:     interval,
		temperatures: map[string]float64{},
		readErrors:   map[string]uint64{},
		gpioErrors:   map[string]uint64{},
	}, nil
}

// Level returns the currently commanded fan level.
func (c *Controller) Level() fan.Level {
	return c.mapper.Level()
}

// Run executes the control loop until the context is canceled, then
// forces the fan off. A cycle in progress always runs to completion;
// the only cancellation point is the wait between cycles.
func (c *Controller) Run(ctx context.Context) error {
	logger.Info().
		Dur("interval", c.interval).
		Msg("Control loop starting")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Control loop stopping")
			c.shutdown()
			logger.Info().Msg("Control loop stopped")

			return nil
		case <-ticker.C:
			c.Cycle(ctx)
		}
	}
}

// Cycle runs one full control cycle. Sensor and actuator failures are
// recovered locally and surface only through the error counters; no
// failure below configuration level terminates the loop.
func (c *Controller) Cycle(ctx context.Context) {
	readings := c.suite.ReadAll(ctx)

	for _, r := range readings {
		if r.OK() {
			c.temperatures[r.Type] = r.Temperature
			continue
		}

		c.readErrors[r.Type]++
		logger.Warn().
			Str("sensor", r.Type).
			Err(r.Err).
			Msg("Sensor read failed")
	}

	composite, ok := sensor.Composite(readings)
	if !ok {
		// Holding the previous level during a sensor outage: acting on
		// the absence of data as if it were zero degrees would stop
		// the fan exactly when we cannot see the temperature.
		logger.Warn().
			Str("level", c.mapper.Level().String()).
			Msg("No sensor data this cycle, holding fan level")
		c.publish()

		return
	}

	c.composite = composite
	c.compositeValid = true

	level, changed := c.mapper.Update(composite)
	if changed {
		c.speedChanges++
		logger.Info().
			Float64("temperature", composite).
			Str("level", level.String()).
			Float64("fan_speed", level.Percent()).
			Msg("Fan level changed")
	} else {
		logger.Debug().
			Float64("temperature", composite).
			Str("level", level.String()).
			Msg("Fan level unchanged")
	}

	c.actuate(level, changed)
	c.publish()
}

// actuate applies the commanded level to the hardware. Unchanged
// levels are not re-written; the underlying actuator is idempotent as
// well, this just avoids needless hardware traffic.
func (c *Controller) actuate(level fan.Level, changed bool) {
	if !changed && c.applied {
		return
	}
	c.applied = true

	if level.Enabled() {
		// Set the duty cycle before powering the rail so the fan
		// starts at its target speed.
		c.setDutyCycle(level.DutyCycle())
		c.setEnable(true)
	} else {
		c.setEnable(false)
		c.setDutyCycle(0)
	}
}

func (c *Controller) setEnable(enabled bool) {
	if err := c.actuator.SetEnable(enabled); err != nil {
		c.gpioErrors[opSetEnable]++
		logger.Error().Err(err).Msg("Failed to set fan enable")
	}
}

func (c *Controller) setDutyCycle(duty float64) {
	if err := c.actuator.SetDutyCycle(duty); err != nil {
		c.gpioErrors[opSetDutyCycle]++
		logger.Error().Err(err).Msg("Failed to set fan duty cycle")
	}
}

// publish hands a complete snapshot to the registry. The registry
// reports the commanded level even when a hardware write failed; the
// divergence is visible through the GPIO error counter instead of an
// ambiguous gauge.
func (c *Controller) publish() {
	level := c.mapper.Level()

	c.registry.Publish(metrics.Snapshot{
		Temperatures:    c.temperatures,
		Composite:       c.composite,
		CompositeValid:  c.compositeValid,
		FanSpeedPercent: level.Percent(),
		FanEnabled:      level.Enabled(),
		SpeedChanges:    c.speedChanges,
		ReadErrors:      c.readErrors,
		GPIOErrors:      c.gpioErrors,
	})
}

// shutdown forces the fan off for safe power-down and records the
// final state.
func (c *Controller) shutdown() {
	if err := c.actuator.SetEnable(false); err != nil {
		c.gpioErrors[opShutdown]++
		logger.Error().Err(err).Msg("Failed to disable fan during shutdown")
	}

	if err := c.actuator.SetDutyCycle(0); err != nil {
		c.gpioErrors[opShutdown]++
		logger.Error().Err(err).Msg("Failed to stop fan PWM during shutdown")
	}

	c.registry.Publish(metrics.Snapshot{
		Temperatures:    c.temperatures,
		Composite:       c.composite,
		CompositeValid:  c.compositeValid,
		FanSpeedPercent: 0,
		FanEnabled:      false,
		SpeedChanges:    c.speedChanges,
		ReadErrors:      c.readErrors,
		GPIOErrors:      c.gpioErrors,
	})
}
