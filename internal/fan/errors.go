package fan

import "github.com/tolkonepiu/rockpi-poe-controller/internal/errors"

const (
	ErrInvalidThresholds = errors.ErrorCode("fan_invalid_thresholds")
	ErrInvalidHysteresis = errors.ErrorCode("fan_invalid_hysteresis")
)
