package gpio

import (
	"sync"
	"time"

	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/logger"
	"github.com/warthog618/gpiod"
)

// The PoE HAT expects its PWM input driven with a 13ms period. The
// character device has no hardware PWM, so the duty cycle is
// synthesized by toggling the line.
const pwmPeriod = 13 * time.Millisecond

type softPWM struct {
	line *gpiod.Line

	mu   sync.Mutex
	duty float64

	stop chan struct{}
	done chan struct{}
}

func newSoftPWM(line *gpiod.Line) *softPWM {
	p := &softPWM{
		line: line,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run()

	return p
}

// SetDuty changes the synthesized duty cycle. The line is driven to
// the new cycle's starting state synchronously so a failing pin
// surfaces on the actuation path rather than in the background.
func (p *softPWM) SetDuty(duty float64) error {
	errFactory := errors.New()

	p.mu.Lock()
	changed := duty != p.duty
	p.duty = duty
	p.mu.Unlock()

	if !changed {
		return nil
	}

	value := 0
	if duty > 0 {
		value = 1
	}

	if err := p.line.SetValue(value); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err).
			WithMessage("failed to set fan PWM")
	}

	logger.Debug().Float64("duty_cycle", duty).Msg("Fan PWM duty cycle set")

	return nil
}

func (p *softPWM) run() {
	defer close(p.done)

	for {
		p.mu.Lock()
		duty := p.duty
		p.mu.Unlock()

		switch {
		case duty <= 0:
			p.setValue(0)
			if !p.sleep(pwmPeriod) {
				return
			}
		case duty >= 1:
			p.setValue(1)
			if !p.sleep(pwmPeriod) {
				return
			}
		default:
			p.setValue(1)
			if !p.sleep(time.Duration(duty * float64(pwmPeriod))) {
				return
			}
			p.setValue(0)
			if !p.sleep(time.Duration((1 - duty) * float64(pwmPeriod))) {
				return
			}
		}
	}
}

func (p *softPWM) setValue(value int) {
	if err := p.line.SetValue(value); err != nil {
		// Counted on the actuation path; here it would only spam.
		logger.Debug().Err(err).Msg("PWM line write failed")
	}
}

// sleep waits for the given duration and reports false when the PWM
// has been closed.
func (p *softPWM) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.stop:
		return false
	}
}

func (p *softPWM) Close() {
	close(p.stop)
	<-p.done

	if err := p.line.SetValue(0); err != nil {
		logger.Debug().Err(err).Msg("Failed to park PWM line on close")
	}
	p.line.Close()
}
