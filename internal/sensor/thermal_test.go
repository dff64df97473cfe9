package sensor_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/procfs/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/sensor"
)

// writeThermalZone lays out a minimal sysfs thermal zone fixture.
func writeThermalZone(t *testing.T, root string, zoneID int, zoneType string, milliDegrees int) {
	t.Helper()

	zoneDir := filepath.Join(root, "class", "thermal", "thermal_zone"+strconv.Itoa(zoneID))
	require.NoError(t, os.MkdirAll(zoneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "type"), []byte(zoneType+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "policy"), []byte("step_wise\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "temp"),
		[]byte(strconv.Itoa(milliDegrees)+"\n"), 0o644))
}

func newSysFS(t *testing.T) (sysfs.FS, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "class", "thermal"), 0o755))
	fs, err := sysfs.NewFS(root)
	require.NoError(t, err)

	return fs, root
}

func TestThermalZoneSensorRead(t *testing.T) {
	fs, root := newSysFS(t)
	writeThermalZone(t, root, 0, "cpu-thermal", 48500)
	writeThermalZone(t, root, 1, "gpu-thermal", 43250)

	cpu := sensor.NewThermalZoneSensor(fs, 0, "cpu")
	gpu := sensor.NewThermalZoneSensor(fs, 1, "gpu")

	assert.Equal(t, "thermal_zone_cpu", cpu.Type())
	assert.True(t, cpu.Available())

	temp, err := cpu.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.5, temp, 0.001)

	temp, err = gpu.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 43.25, temp, 0.001)
}

func TestThermalZoneSensorMissingZone(t *testing.T) {
	fs, root := newSysFS(t)
	writeThermalZone(t, root, 0, "cpu-thermal", 40000)

	missing := sensor.NewThermalZoneSensor(fs, 7, "npu")
	assert.False(t, missing.Available())

	_, err := missing.Read(context.Background())
	assert.Error(t, err)
}

func TestHATSensorRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("960\n"), 0o644))

	hat := sensor.NewHATSensor(path)
	assert.Equal(t, "poe_hat", hat.Type())
	assert.True(t, hat.Available())

	temp, err := hat.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.0, temp, 0.001)

	// 860 raw counts is 5°C above the calibration point.
	require.NoError(t, os.WriteFile(path, []byte("860\n"), 0o644))
	temp, err = hat.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 47.0, temp, 0.001)
}

func TestHATSensorUnavailable(t *testing.T) {
	hat := sensor.NewHATSensor(filepath.Join(t.TempDir(), "nope"))
	assert.False(t, hat.Available())

	_, err := hat.Read(context.Background())
	assert.Error(t, err)
}

func TestHATSensorParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))

	_, err := sensor.NewHATSensor(path).Read(context.Background())
	assert.Error(t, err)
}
