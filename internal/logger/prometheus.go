package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// counter is shared by every hook, registration happens once per process.
	counter     *prometheus.CounterVec //nolint:gochecknoglobals
	counterOnce sync.Once              //nolint:gochecknoglobals
)

// PrometheusHook counts log statements per level.
type PrometheusHook struct {
	counter *prometheus.CounterVec
}

// Run implements zerolog.Hook.
func (h PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level != zerolog.NoLevel && h.counter != nil {
		h.counter.WithLabelValues(level.String()).Inc()
	}
}

// NewPrometheusHook returns the hook behind adopsbot_log_statements_total,
// registered on the default registry.
func NewPrometheusHook(service string) PrometheusHook {
	counterOnce.Do(func() {
		counter = newLogCounter(prometheus.DefaultRegisterer, service)
	})

	return PrometheusHook{counter: counter}
}

func newLogCounter(reg prometheus.Registerer, service string) *prometheus.CounterVec {
	return promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "adopsbot",
			Name:        "log_statements_total",
			Help:        "Number of log statements by level.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"level"},
	)
}
