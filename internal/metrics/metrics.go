package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rockpi_poe"

// compositeSensorType labels the aggregated worst-case temperature in
// the per-sensor temperature family, matching the per-source series.
const compositeSensorType = "composite"

// Registry holds the daemon's observable state and exposes it as a
// prometheus.Collector. A single writer (the control loop) swaps in a
// snapshot once per cycle; concurrent scrapes read the last complete
// snapshot and never touch hardware.
type Registry struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	startTime time.Time

	temperatureDesc  *prometheus.Desc
	fanSpeedDesc     *prometheus.Desc
	fanEnabledDesc   *prometheus.Desc
	speedChangesDesc *prometheus.Desc
	readErrorsDesc   *prometheus.Desc
	gpioErrorsDesc   *prometheus.Desc
	uptimeDesc       *prometheus.Desc
}

func NewRegistry(nodeName, nodeIP string) *Registry {
	constLabels := prometheus.Labels{
		"node_name": nodeName,
		"node_ip":   nodeIP,
	}

	return &Registry{
		startTime: time.Now(),
		snapshot: Snapshot{
			Temperatures: map[string]float64{},
			ReadErrors:   map[string]uint64{},
			GPIOErrors:   map[string]uint64{},
		},
		temperatureDesc: prometheus.NewDesc(
			namespace+"_temperature_celsius",
			"Current temperature in Celsius",
			[]string{"sensor_type"}, constLabels,
		),
		fanSpeedDesc: prometheus.NewDesc(
			namespace+"_fan_speed_percent",
			"Current fan speed as percentage",
			nil, constLabels,
		),
		fanEnabledDesc: prometheus.NewDesc(
			namespace+"_fan_enabled",
			"Fan enabled status (1=enabled, 0=disabled)",
			nil, constLabels,
		),
		speedChangesDesc: prometheus.NewDesc(
			namespace+"_fan_speed_changes_total",
			"Total number of fan speed changes",
			nil, constLabels,
		),
		readErrorsDesc: prometheus.NewDesc(
			namespace+"_temperature_read_errors_total",
			"Total number of temperature read errors",
			[]string{"sensor_type"}, constLabels,
		),
		gpioErrorsDesc: prometheus.NewDesc(
			namespace+"_gpio_errors_total",
			"Total number of GPIO errors",
			[]string{"operation"}, constLabels,
		),
		uptimeDesc: prometheus.NewDesc(
			namespace+"_controller_uptime_seconds",
			"Controller uptime in seconds",
			nil, constLabels,
		),
	}
}

// Publish atomically replaces the current snapshot.
func (r *Registry) Publish(snapshot Snapshot) {
	clone := snapshot.Clone()

	r.mu.Lock()
	r.snapshot = clone
	r.mu.Unlock()
}

// Snapshot returns a copy of the last published snapshot.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot.Clone()
}

// Uptime returns the wall-clock time elapsed since process start.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.temperatureDesc
	ch <- r.fanSpeedDesc
	ch <- r.fanEnabledDesc
	ch <- r.speedChangesDesc
	ch <- r.readErrorsDesc
	ch <- r.gpioErrorsDesc
	ch <- r.uptimeDesc
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	snapshot := r.snapshot
	r.mu.RUnlock()

	for sensorType, temp := range snapshot.Temperatures {
		ch <- prometheus.MustNewConstMetric(r.temperatureDesc,
			prometheus.GaugeValue, temp, sensorType)
	}

	if snapshot.CompositeValid {
		ch <- prometheus.MustNewConstMetric(r.temperatureDesc,
			prometheus.GaugeValue, snapshot.Composite, compositeSensorType)
	}

	ch <- prometheus.MustNewConstMetric(r.fanSpeedDesc,
		prometheus.GaugeValue, snapshot.FanSpeedPercent)

	enabled := 0.0
	if snapshot.FanEnabled {
		enabled = 1.0
	}
	ch <- prometheus.MustNewConstMetric(r.fanEnabledDesc,
		prometheus.GaugeValue, enabled)

	ch <- prometheus.MustNewConstMetric(r.speedChangesDesc,
		prometheus.CounterValue, float64(snapshot.SpeedChanges))

	for sensorType, count := range snapshot.ReadErrors {
		ch <- prometheus.MustNewConstMetric(r.readErrorsDesc,
			prometheus.CounterValue, float64(count), sensorType)
	}

	for operation, count := range snapshot.GPIOErrors {
		ch <- prometheus.MustNewConstMetric(r.gpioErrorsDesc,
			prometheus.CounterValue, float64(count), operation)
	}

	ch <- prometheus.MustNewConstMetric(r.uptimeDesc,
		prometheus.GaugeValue, r.Uptime().Seconds())
}
