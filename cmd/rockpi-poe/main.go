package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/procfs/sysfs"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/config"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/controller"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/errors"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/fan"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/gpio"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/logger"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/metrics"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/pid"
	"github.com/tolkonepiu/rockpi-poe-controller/internal/sensor"
)

const (
	cpuThermalZone = 0
	gpuThermalZone = 1

	httpShutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Fan controller failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	errFactory := errors.New()

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	actuator, err := gpio.New(cfg.GPIOChip, cfg.FanEnablePin, cfg.FanPWMPin)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := actuator.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close GPIO actuator")
		}
	}()

	suite, err := buildSensorSuite(cfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	mapper, err := fan.NewMapper(fan.Thresholds{
		LV0: cfg.LV0,
		LV1: cfg.LV1,
		LV2: cfg.LV2,
		LV3: cfg.LV3,
	}, cfg.EffectiveHysteresis())
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	logger.Info().
		Floats64("thresholds", []float64{cfg.LV0, cfg.LV1, cfg.LV2, cfg.LV3}).
		Float64("hysteresis", cfg.EffectiveHysteresis()).
		Msg("Fan level mapper initialized")

	registry := metrics.NewRegistry(cfg.NodeName, cfg.NodeIP)

	ctrl, err := controller.New(suite, mapper, actuator, registry, cfg.PollInterval())
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	server := startMetricsServer(cfg, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := ctrl.Run(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Metrics server shutdown failed")
	}

	logger.Info().Msg("Exiting...")

	return nil
}

func buildSensorSuite(cfg *config.Config) (*sensor.Suite, error) {
	fs, err := sysfs.NewFS("/sys")
	if err != nil {
		return nil, err
	}

	sensors := []sensor.Sensor{
		sensor.NewThermalZoneSensor(fs, cpuThermalZone, "cpu"),
		sensor.NewThermalZoneSensor(fs, gpuThermalZone, "gpu"),
	}

	if cfg.HATSensor {
		sensors = append(sensors, sensor.NewHATSensor(""))
	}

	for _, s := range sensors {
		if !s.Available() {
			logger.Warn().Str("sensor", s.Type()).Msg("Sensor not available")
		}
	}

	// A hung device must not stall the cycle; bound each read by the
	// cycle interval.
	return sensor.NewSuite(cfg.PollInterval(), sensors...), nil
}

func startMetricsServer(cfg *config.Config, registry *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.MetricsHost, strconv.Itoa(cfg.MetricsPort)),
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return server
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
