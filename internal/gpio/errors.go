package gpio

import "github.com/tolkonepiu/rockpi-poe-controller/internal/errors"

const (
	ErrChipOpenFailed    = errors.ErrorCode("gpio_chip_open_failed")
	ErrLineRequestFailed = errors.ErrorCode("gpio_line_request_failed")
	ErrWriteFailed       = errors.ErrorCode("gpio_write_failed")
	ErrInvalidDutyCycle  = errors.ErrorCode("gpio_invalid_duty_cycle")
	ErrClosed            = errors.ErrorCode("gpio_closed")
)
