package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
)

const (
	DefaultLogLevel   = "info"
	defaultConfigPath = "/etc/rockpi-poe.toml"

	minPort = 1024
	maxPort = 65535
)

type Config struct {
	// Temperature thresholds (°C) at which the fan enters levels 1-4.
	// Must be strictly increasing.
	LV0 float64 `mapstructure:"lv0"`
	LV1 float64 `mapstructure:"lv1"`
	LV2 float64 `mapstructure:"lv2"`
	LV3 float64 `mapstructure:"lv3"`

	// Hysteresis is the margin (°C) the temperature must cool below a
	// level's entry threshold before the level is lowered. Zero selects
	// half the smallest inter-threshold gap.
	Hysteresis float64 `mapstructure:"hysteresis"`

	GPIOChip     string `mapstructure:"gpio_chip"`
	FanEnablePin int    `mapstructure:"fan_enable_pin"`
	FanPWMPin    int    `mapstructure:"fan_pwm_pin"`

	Interval float64 `mapstructure:"interval"`

	MetricsHost string `mapstructure:"metrics_host"`
	MetricsPort int    `mapstructure:"metrics_port"`

	NodeName string `mapstructure:"node_name"`
	NodeIP   string `mapstructure:"node_ip"`

	HATSensor bool `mapstructure:"hat_sensor"`

	LogLevel string `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	v.SetDefault("lv0", 40.0)
	v.SetDefault("lv1", 45.0)
	v.SetDefault("lv2", 50.0)
	v.SetDefault("lv3", 55.0)
	v.SetDefault("hysteresis", 0.0)
	v.SetDefault("gpio_chip", "gpiochip0")
	v.SetDefault("fan_enable_pin", 16)
	v.SetDefault("fan_pwm_pin", 13)
	v.SetDefault("interval", 10.0)
	v.SetDefault("metrics_host", "0.0.0.0")
	v.SetDefault("metrics_port", 8000)
	v.SetDefault("node_name", "")
	v.SetDefault("node_ip", "127.0.0.1")
	v.SetDefault("hat_sensor", false)
	v.SetDefault("log_level", DefaultLogLevel)

	fs := pflag.NewFlagSet("rockpi-poe", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	fs.Float64("lv0", 40.0, "Temperature for 25% fan speed")
	fs.Float64("lv1", 45.0, "Temperature for 50% fan speed")
	fs.Float64("lv2", 50.0, "Temperature for 75% fan speed")
	fs.Float64("lv3", 55.0, "Temperature for 100% fan speed")
	fs.Float64("hysteresis", 0.0, "Cooling margin before lowering fan level (0 = auto)")
	fs.Float64("interval", 10.0, "Seconds between temperature checks")
	fs.String("metrics-host", "0.0.0.0", "Bind host for the metrics endpoint")
	fs.Int("metrics-port", 8000, "Bind port for the metrics endpoint")
	fs.String("node-name", "", "Node name label (default: hostname)")
	fs.String("node-ip", "127.0.0.1", "Node IP label")
	fs.Bool("hat-sensor", false, "Read the PoE HAT onboard sensor via the IIO ADC")
	fs.String("log-level", DefaultLogLevel, "Logging level (debug, info, warning, error)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	// Config file location: flag wins over POE_CONFIG, which wins over
	// the packaged default. A missing default file is not an error.
	configPath := *configFlag
	explicit := configPath != ""
	if !explicit {
		if env := os.Getenv("POE_CONFIG"); env != "" {
			configPath = env
			explicit = true
		} else {
			configPath = defaultConfigPath
		}
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, errFactory.Wrap(ErrReadConfig, err).
				WithMessage("Failed to read config file")
		}
	}

	v.SetEnvPrefix("POE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Explicit flags override both the config file and the environment.
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(ErrUnmarshalConfig, err)
	}

	if config.NodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}
		config.NodeName = hostname
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !(c.LV0 < c.LV1 && c.LV1 < c.LV2 && c.LV2 < c.LV3) {
		return errFactory.WithData(ErrInvalidThresholds,
			[]float64{c.LV0, c.LV1, c.LV2, c.LV3})
	}

	if c.Hysteresis < 0 {
		return errFactory.WithData(ErrInvalidThresholds, c.Hysteresis).
			WithMessage("hysteresis must not be negative")
	}

	if c.Interval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, c.Interval)
	}

	if c.MetricsPort < minPort || c.MetricsPort > maxPort {
		return errFactory.WithData(ErrInvalidPort, c.MetricsPort)
	}

	if c.FanEnablePin < 0 || c.FanPWMPin < 0 {
		return errFactory.WithData(ErrInvalidPin,
			[]int{c.FanEnablePin, c.FanPWMPin})
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// PollInterval returns the configured cycle interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// EffectiveHysteresis resolves the auto hysteresis setting: half the
// smallest gap between adjacent thresholds.
func (c *Config) EffectiveHysteresis() float64 {
	if c.Hysteresis > 0 {
		return c.Hysteresis
	}

	smallest := c.LV1 - c.LV0
	if gap := c.LV2 - c.LV1; gap < smallest {
		smallest = gap
	}
	if gap := c.LV3 - c.LV2; gap < smallest {
		smallest = gap
	}

	return smallest / 2
}
