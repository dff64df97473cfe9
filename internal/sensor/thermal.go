package sensor

import (
	"context"
	"strconv"

	"github.com/prometheus/procfs/sysfs"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
)

const milliDegreesPerDegree = 1000.0

// ThermalZoneSensor reads one kernel thermal zone through sysfs.
type ThermalZoneSensor struct {
	fs   sysfs.FS
	zone string
	name string
}

// NewThermalZoneSensor builds a sensor for /sys/class/thermal/thermal_zone<id>.
// The name distinguishes zones in metric labels ("cpu", "gpu").
func NewThermalZoneSensor(fs sysfs.FS, zoneID int, name string) *ThermalZoneSensor {
	return &ThermalZoneSensor{
		fs:   fs,
		zone: strconv.Itoa(zoneID),
		name: name,
	}
}

func (s *ThermalZoneSensor) Type() string {
	return "thermal_zone_" + s.name
}

func (s *ThermalZoneSensor) Available() bool {
	stats, err := s.fs.ClassThermalZoneStats()
	if err != nil {
		return false
	}

	for _, zone := range stats {
		if zone.Name == s.zone {
			return true
		}
	}

	return false
}

func (s *ThermalZoneSensor) Read(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	stats, err := s.fs.ClassThermalZoneStats()
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err).
			WithMessage("failed to read thermal zone " + s.name)
	}

	for _, zone := range stats {
		if zone.Name == s.zone {
			return float64(zone.Temp) / milliDegreesPerDegree, nil
		}
	}

	return 0, errFactory.WithData(ErrNotAvailable, s.Type())
}
