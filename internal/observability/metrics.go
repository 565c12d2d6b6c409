package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	envCreates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tox4conda",
			Subsystem: "env",
			Name:      "create_total",
			Help:      "Environment creation attempts.",
		},
		[]string{"runner", "outcome"},
	)
	envCreateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tox4conda",
			Subsystem: "env",
			Name:      "create_duration_seconds",
			Help:      "Environment creation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"runner", "outcome"},
	)
	envInstallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tox4conda",
			Subsystem: "env",
			Name:      "install_duration_seconds",
			Help:      "Dependency installation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"runner", "outcome"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tox4conda",
			Subsystem: "conda",
			Name:      "commands_total",
			Help:      "Conda invocations by lifecycle phase.",
		},
		[]string{"phase", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(envCreates, envCreateDuration, envInstallDuration, commands)
	})
}

func RecordEnvCreate(runner, outcome string, duration time.Duration) {
	RegisterMetrics()
	envCreates.WithLabelValues(runner, outcome).Inc()
	envCreateDuration.WithLabelValues(runner, outcome).Observe(duration.Seconds())
}

func RecordEnvInstall(runner, outcome string, duration time.Duration) {
	RegisterMetrics()
	envInstallDuration.WithLabelValues(runner, outcome).Observe(duration.Seconds())
}

func RecordCommand(phase, outcome string) {
	RegisterMetrics()
	commands.WithLabelValues(phase, outcome).Inc()
}
