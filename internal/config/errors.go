package config

import "github.com/tolkonepiu/rockpi-poe-controller/internal/errors"

const (
	ErrReadConfig        = errors.ErrReadConfig
	ErrInvalidInterval   = errors.ErrInvalidInterval
	ErrInvalidLogLevel   = errors.ErrInvalidLogLevel
	ErrInvalidThresholds = errors.ErrorCode("config_invalid_thresholds")
	ErrInvalidPort       = errors.ErrorCode("config_invalid_metrics_port")
	ErrInvalidPin        = errors.ErrorCode("config_invalid_gpio_pin")
	ErrUnmarshalConfig   = errors.ErrorCode("config_unmarshal_failed")
)
