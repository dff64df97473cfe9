package gpio

import (
	"sync"

	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/logger"
	"github.com/warthog618/gpiod"
)

const consumerName = "rockpi-poe"

type actuator struct {
	chip   *gpiod.Chip
	enable *gpiod.Line
	pwm    *softPWM

	mu           sync.Mutex
	enabled      bool
	enabledKnown bool
	closed       bool
}

// New opens the GPIO chip and requests the fan enable and PWM lines as
// outputs. Failure here means the hardware capability is unavailable
// and is fatal to startup.
func New(chipName string, enablePin, pwmPin int) (Actuator, error) {
	errFactory := errors.New()

	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer(consumerName))
	if err != nil {
		return nil, errFactory.Wrap(ErrChipOpenFailed, err).
			WithMessage("failed to open GPIO chip " + chipName)
	}

	enable, err := chip.RequestLine(enablePin, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, errFactory.Wrap(ErrLineRequestFailed, err).
			WithMessage("failed to request fan enable line")
	}

	pwmLine, err := chip.RequestLine(pwmPin, gpiod.AsOutput(0))
	if err != nil {
		enable.Close()
		chip.Close()
		return nil, errFactory.Wrap(ErrLineRequestFailed, err).
			WithMessage("failed to request fan PWM line")
	}

	logger.Info().
		Str("chip", chipName).
		Int("enable_pin", enablePin).
		Int("pwm_pin", pwmPin).
		Msg("GPIO actuator initialized")

	return &actuator{
		chip:   chip,
		enable: enable,
		pwm:    newSoftPWM(pwmLine),
	}, nil
}

func (a *actuator) SetEnable(enabled bool) error {
	errFactory := errors.New()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errFactory.New(ErrClosed)
	}

	// Re-asserting the current state is a no-op.
	if a.enabledKnown && a.enabled == enabled {
		return nil
	}

	value := 0
	if enabled {
		value = 1
	}

	if err := a.enable.SetValue(value); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err).
			WithMessage("failed to set fan enable")
	}

	a.enabled = enabled
	a.enabledKnown = true
	logger.Debug().Bool("enabled", enabled).Msg("Fan enable line set")

	return nil
}

func (a *actuator) SetDutyCycle(duty float64) error {
	errFactory := errors.New()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errFactory.New(ErrClosed)
	}

	if duty < 0 || duty > 1 {
		return errFactory.WithData(ErrInvalidDutyCycle, duty)
	}

	return a.pwm.SetDuty(duty)
}

func (a *actuator) Close() error {
	errFactory := errors.New()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	// Leave the fan unpowered.
	if err := a.enable.SetValue(0); err != nil {
		logger.Warn().Err(err).Msg("Failed to deassert fan enable on close")
	}

	a.pwm.Close()
	a.enable.Close()

	if err := a.chip.Close(); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
