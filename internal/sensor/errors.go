package sensor

import "github.com/tolkonepiu/rockpi-poe-controller/internal/errors"

const (
	ErrNotAvailable = errors.ErrorCode("sensor_not_available")
	ErrReadFailed   = errors.ErrorCode("sensor_read_failed")
	ErrReadTimeout  = errors.ErrorCode("sensor_read_timeout")
	ErrNoData       = errors.ErrorCode("sensor_no_data")
)
