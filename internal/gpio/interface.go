package gpio

// Actuator is the hardware capability the control loop drives. It is
// deliberately narrow so the loop can be tested against a fake.
type Actuator interface {
	// SetEnable asserts or deasserts the fan power rail.
	SetEnable(enabled bool) error

	// SetDutyCycle sets the PWM duty cycle as a fraction in [0, 1].
	SetDutyCycle(duty float64) error

	// Close releases the underlying lines, leaving the fan off.
	Close() error
}
