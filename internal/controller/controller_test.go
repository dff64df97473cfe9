package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/controller"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/fan"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/metrics"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/sensor"
)

var testThresholds = fan.Thresholds{LV0: 40, LV1: 45, LV2: 50, LV3: 55}

type fakeSensor struct {
	mu   sync.Mutex
	name string
	temp float64
	err  error
}

func (f *fakeSensor) Type() string    { return f.name }
func (f *fakeSensor) Available() bool { return true }

func (f *fakeSensor) Read(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}

	return f.temp, nil
}

func (f *fakeSensor) set(temp float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temp = temp
	f.err = err
}

type fakeActuator struct {
	mu          sync.Mutex
	enables     []bool
	duties      []float64
	enableErr   error
	dutyErr     error
	closeCalled bool
}

func (f *fakeActuator) SetEnable(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enables = append(f.enables, enabled)

	return nil
}

func (f *fakeActuator) SetDutyCycle(duty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dutyErr != nil {
		return f.dutyErr
	}
	f.duties = append(f.duties, duty)

	return nil
}

func (f *fakeActuator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalled = true

	return nil
}

func (f *fakeActuator) lastEnable(t *testing.T) bool {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.enables)

	return f.enables[len(f.enables)-1]
}

func (f *fakeActuator) lastDuty(t *testing.T) float64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.duties)

	return f.duties[len(f.duties)-1]
}

func (f *fakeActuator) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.enables) + len(f.duties)
}

func newController(t *testing.T, actuator *fakeActuator, sensors ...sensor.Sensor) (*controller.Controller, *metrics.Registry) {
	t.Helper()

	mapper, err := fan.NewMapper(testThresholds, 2.5)
	require.NoError(t, err)

	registry := metrics.NewRegistry("test-node", "10.0.0.1")
	suite := sensor.NewSuite(time.Second, sensors...)

	c, err := controller.New(suite, mapper, actuator, registry, 10*time.Millisecond)
	require.NoError(t, err)

	return c, registry
}

func TestNewRejectsInvalidInterval(t *testing.T) {
	mapper, err := fan.NewMapper(testThresholds, 2.5)
	require.NoError(t, err)

	_, err = controller.New(
		sensor.NewSuite(time.Second),
		mapper,
		&fakeActuator{},
		metrics.NewRegistry("n", "ip"),
		0,
	)
	assert.Error(t, err)
}

func TestCycleBelowFirstThresholdKeepsFanOff(t *testing.T) {
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 38}
	c, registry := newController(t, actuator, cpu)

	c.Cycle(context.Background())

	assert.Equal(t, fan.LevelOff, c.Level())
	assert.False(t, actuator.lastEnable(t))

	snapshot := registry.Snapshot()
	assert.InDelta(t, 0.0, snapshot.FanSpeedPercent, 0.001)
	assert.False(t, snapshot.FanEnabled)
	assert.Zero(t, snapshot.SpeedChanges)
	assert.InDelta(t, 38.0, snapshot.Composite, 0.001)
	assert.True(t, snapshot.CompositeValid)
}

func TestCycleCrossingThresholdRaisesLevel(t *testing.T) {
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 38}
	c, registry := newController(t, actuator, cpu)

	c.Cycle(context.Background())
	cpu.set(41, nil)
	c.Cycle(context.Background())

	assert.Equal(t, fan.Level1, c.Level())
	assert.True(t, actuator.lastEnable(t))
	assert.InDelta(t, 0.25, actuator.lastDuty(t), 0.001)

	snapshot := registry.Snapshot()
	assert.Equal(t, uint64(1), snapshot.SpeedChanges)
	assert.InDelta(t, 25.0, snapshot.FanSpeedPercent, 0.001)
	assert.True(t, snapshot.FanEnabled)
}

func TestCycleCompositeIsMaxAcrossSensors(t *testing.T) {
	actuator := &fakeActuator{}
	c, registry := newController(t, actuator,
		&fakeSensor{name: "thermal_zone_cpu", temp: 50},
		&fakeSensor{name: "thermal_zone_gpu", temp: 44},
	)

	c.Cycle(context.Background())

	snapshot := registry.Snapshot()
	assert.InDelta(t, 50.0, snapshot.Composite, 0.001)
	assert.InDelta(t, 50.0, snapshot.Temperatures["thermal_zone_cpu"], 0.001)
	assert.InDelta(t, 44.0, snapshot.Temperatures["thermal_zone_gpu"], 0.001)
	assert.Equal(t, fan.Level3, c.Level(), "50°C meets the LV2 boundary")
}

func TestCycleSingleSensorFailure(t *testing.T) {
	errFactory := errors.New()
	actuator := &fakeActuator{}
	c, registry := newController(t, actuator,
		&fakeSensor{name: "thermal_zone_cpu", err: errFactory.New(sensor.ErrReadFailed)},
		&fakeSensor{name: "thermal_zone_gpu", temp: 42},
	)

	c.Cycle(context.Background())

	snapshot := registry.Snapshot()
	assert.Equal(t, uint64(1), snapshot.ReadErrors["thermal_zone_cpu"])
	assert.InDelta(t, 42.0, snapshot.Composite, 0.001)
	assert.Equal(t, fan.Level1, c.Level())
}

func TestCycleAllSensorsFailHoldsLevel(t *testing.T) {
	errFactory := errors.New()
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 52}
	gpu := &fakeSensor{name: "thermal_zone_gpu", temp: 47}
	c, registry := newController(t, actuator, cpu, gpu)

	c.Cycle(context.Background())
	require.Equal(t, fan.Level3, c.Level())
	writesBefore := actuator.writeCount()

	cpu.set(0, errFactory.New(sensor.ErrReadFailed))
	gpu.set(0, errFactory.New(sensor.ErrReadTimeout))
	c.Cycle(context.Background())

	assert.Equal(t, fan.Level3, c.Level(), "level must hold during a sensor outage")
	assert.Equal(t, writesBefore, actuator.writeCount(), "no actuation on a no-data cycle")

	snapshot := registry.Snapshot()
	assert.Equal(t, uint64(1), snapshot.ReadErrors["thermal_zone_cpu"])
	assert.Equal(t, uint64(1), snapshot.ReadErrors["thermal_zone_gpu"])
	assert.InDelta(t, 75.0, snapshot.FanSpeedPercent, 0.001)
	assert.True(t, snapshot.FanEnabled)
}

func TestCycleIdempotentActuation(t *testing.T) {
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 46}
	c, registry := newController(t, actuator, cpu)

	c.Cycle(context.Background())
	writesAfterFirst := actuator.writeCount()

	c.Cycle(context.Background())
	c.Cycle(context.Background())

	assert.Equal(t, writesAfterFirst, actuator.writeCount(),
		"unchanged level must not be re-written")
	assert.Equal(t, uint64(1), registry.Snapshot().SpeedChanges)
}

func TestCycleActuatorErrorDoesNotStopLoop(t *testing.T) {
	errFactory := errors.New()
	actuator := &fakeActuator{
		enableErr: errFactory.New(errors.ErrOperationFailed),
		dutyErr:   errFactory.New(errors.ErrOperationFailed),
	}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 46}
	c, registry := newController(t, actuator, cpu)

	c.Cycle(context.Background())

	// The registry reports the commanded level; the failure is visible
	// only through the GPIO error counters.
	snapshot := registry.Snapshot()
	assert.Equal(t, fan.Level2, c.Level())
	assert.InDelta(t, 50.0, snapshot.FanSpeedPercent, 0.001)
	assert.True(t, snapshot.FanEnabled)
	assert.Equal(t, uint64(1), snapshot.GPIOErrors["set_enable"])
	assert.Equal(t, uint64(1), snapshot.GPIOErrors["set_duty_cycle"])
}

func TestCountersAreMonotonic(t *testing.T) {
	errFactory := errors.New()
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 38}
	c, registry := newController(t, actuator, cpu)

	var lastChanges, lastErrors uint64
	temps := []float64{38, 46, 39, 52, 38, 60, 20}
	for i, temp := range temps {
		if i%3 == 2 {
			cpu.set(0, errFactory.New(sensor.ErrReadFailed))
		} else {
			cpu.set(temp, nil)
		}
		c.Cycle(context.Background())

		snapshot := registry.Snapshot()
		assert.GreaterOrEqual(t, snapshot.SpeedChanges, lastChanges)
		assert.GreaterOrEqual(t, snapshot.ReadErrors["thermal_zone_cpu"], lastErrors)
		lastChanges = snapshot.SpeedChanges
		lastErrors = snapshot.ReadErrors["thermal_zone_cpu"]
	}
}

func TestRunShutdownForcesFanOff(t *testing.T) {
	actuator := &fakeActuator{}
	cpu := &fakeSensor{name: "thermal_zone_cpu", temp: 52}
	c, registry := newController(t, actuator, cpu)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Let a few cycles run at level 3, then signal shutdown.
	require.Eventually(t, func() bool {
		return registry.Snapshot().FanEnabled
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.False(t, actuator.lastEnable(t), "fan must be forced off on shutdown")
	assert.InDelta(t, 0.0, actuator.lastDuty(t), 0.001)

	snapshot := registry.Snapshot()
	assert.False(t, snapshot.FanEnabled)
	assert.InDelta(t, 0.0, snapshot.FanSpeedPercent, 0.001)
}
