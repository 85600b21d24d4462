package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	serviceUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vigil",
		Name:      "service_up",
		Help:      "Whether the service passed its readiness gate and is live (1=up, 0=down).",
	}, []string{"service"})

	serviceRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "service_restarts_total",
		Help:      "Total number of automatic restarts scheduled for each service.",
	}, []string{"service"})

	healthWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vigil",
		Name:      "health_wait_seconds",
		Help:      "Time spent waiting for a service's readiness probe in seconds.",
	}, []string{"service"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vigil",
		Name:      "build_info",
		Help:      "Build metadata for the running vigil binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(serviceUp, serviceRestarts, healthWait, buildInfo)
}

// Registry returns the Prometheus registry containing all vigil metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetServiceUp records whether the provided service is live.
func SetServiceUp(service string, up bool) {
	if service == "" {
		return
	}
	value := 0.0
	if up {
		value = 1.0
	}
	serviceUp.WithLabelValues(service).Set(value)
}

// AddServiceRestarts adds to the restart counter for a service.
func AddServiceRestarts(service string, n int) {
	if service == "" || n <= 0 {
		return
	}
	serviceRestarts.WithLabelValues(service).Add(float64(n))
}

// IncServiceRestarts increments the restart counter by one for a service.
func IncServiceRestarts(service string) {
	AddServiceRestarts(service, 1)
}

// ObserveHealthWait records how long a service's readiness wait took.
func ObserveHealthWait(service string, d time.Duration) {
	label := service
	if label == "" {
		label = "unknown"
	}
	healthWait.WithLabelValues(label).Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetService clears every per-service series, typically on reload when the
// supervisor roster is rebuilt.
func ResetService(service string) {
	if service == "" {
		return
	}
	serviceUp.DeleteLabelValues(service)
	serviceRestarts.DeleteLabelValues(service)
	healthWait.DeleteLabelValues(service)
}
