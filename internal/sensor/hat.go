package sensor

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
)

// DefaultHATDevicePath is where the PoE HAT's NTC shows up on stock
// Radxa images.
const DefaultHATDevicePath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// Thermistor calibration from the vendor's reference script: 960 raw
// counts correspond to 42°C, each count below adds 0.05°C.
const (
	hatCalibrationOffset = 42.0
	hatCalibrationRaw    = 960.0
	hatDegreesPerCount   = 0.05
)

// HATSensor reads the PoE HAT's onboard thermistor through the IIO ADC.
type HATSensor struct {
	devicePath string
}

func NewHATSensor(devicePath string) *HATSensor {
	if devicePath == "" {
		devicePath = DefaultHATDevicePath
	}

	return &HATSensor{devicePath: devicePath}
}

func (s *HATSensor) Type() string {
	return "poe_hat"
}

func (s *HATSensor) Available() bool {
	_, err := os.Stat(s.devicePath)
	return err == nil
}

func (s *HATSensor) Read(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	data, err := os.ReadFile(s.devicePath)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err).
			WithMessage("failed to read HAT ADC")
	}

	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err).
			WithMessage("failed to parse HAT ADC value")
	}

	return hatCalibrationOffset + (hatCalibrationRaw-float64(raw))*hatDegreesPerCount, nil
}
