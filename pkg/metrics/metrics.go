package metrics

import (
	"fmt"
	"math"
	"net/http"

	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

var log = logger.NewLogger("actionpack.metrics")

// BuildMetrics captures the outcome and stage durations of action builds.
type BuildMetrics interface {
	IncBuildsCompleted(outcome string)
	ObserveStageDuration(stage string, durationSeconds float64)
	ObserveBundleSize(bytes int64)
}

// Noop implements BuildMetrics without emitting anything.
type Noop struct{}

func (Noop) IncBuildsCompleted(string)            {}
func (Noop) ObserveStageDuration(string, float64) {}
func (Noop) ObserveBundleSize(int64)              {}

// Prom implements BuildMetrics backed by a dedicated Prometheus registry.
type Prom struct {
	registry        *prometheus.Registry
	buildsCompleted *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	bundleSize      prometheus.Histogram
}

// NewProm creates the build metrics and the host usage gauges of the given workspace root.
func NewProm(namespace string, workspaceRoot string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		buildsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_completed_total",
			Help:      "Action builds completed by outcome",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_stage_duration_seconds",
			Help:      "Action build stage duration seconds by stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		bundleSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_size_bytes",
			Help:      "Size of the assembled action bundles",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
	}
	p.registry.MustRegister(
		p.buildsCompleted,
		p.stageDuration,
		p.bundleSize,
		hostGauge(namespace, "host_cpu_usage_percent", "Host cpu usage in percent", cpuUsage),
		hostGauge(namespace, "host_memory_usage_percent", "Host memory usage in percent", memoryUsage),
		hostGauge(namespace, "workspace_disk_usage_percent", "Disk usage of the workspace root in percent", func() (int, error) {
			return diskUsage(workspaceRoot)
		}),
	)
	return p
}

func (p *Prom) IncBuildsCompleted(outcome string) {
	p.buildsCompleted.WithLabelValues(outcome).Inc()
}

func (p *Prom) ObserveStageDuration(stage string, durationSeconds float64) {
	p.stageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

func (p *Prom) ObserveBundleSize(bytes int64) {
	p.bundleSize.Observe(float64(bytes))
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func hostGauge(namespace string, name string, help string, read func() (int, error)) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		value, err := read()
		if err != nil {
			log.Warnf("failed to read %s: %v", name, err)
			return math.NaN()
		}
		return float64(value)
	})
}

// cpuUsage returns the current CPU usage in percent.
func cpuUsage() (int, error) {
	percent, err := cpu.Percent(0, false)
	if err != nil {
		return 0, fmt.Errorf("failed to get cpu usage: %w", err)
	}
	if len(percent) > 0 {
		return int(math.Round(percent[0])), nil
	}
	return 0, nil
}

// memoryUsage returns the current memory usage in percent.
func memoryUsage() (int, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to get memory usage: %w", err)
	}
	return int(math.Round(stat.UsedPercent)), nil
}

// diskUsage returns the current disk usage of the file system holding path in percent.
func diskUsage(path string) (int, error) {
	stat, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk usage: %w", err)
	}
	return int(math.Round(stat.UsedPercent)), nil
}
