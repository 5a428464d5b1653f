// Package metrics collects registry metrics and serves them to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the façade reports into.
type Recorder interface {
	RecordExecute(action string, err error, took time.Duration)
	SetRegisteredUsers(n uint32)
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Collector struct {
	executes        *prometheus.CounterVec
	executeLatency  *prometheus.HistogramVec
	registeredUsers prometheus.Gauge
}

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		executes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userledger_execute_total",
			Help: "Execute calls by action and outcome.",
		}, []string{"action", "outcome"}),
		executeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "userledger_execute_duration_seconds",
			Help:    "Execute call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		registeredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userledger_registered_users",
			Help: "Number of registered users.",
		}),
	}

	reg.MustRegister(c.executes, c.executeLatency, c.registeredUsers)
	return c
}

func (c *Collector) RecordExecute(action string, err error, took time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.executes.WithLabelValues(action, outcome).Inc()
	c.executeLatency.WithLabelValues(action).Observe(took.Seconds())
}

func (c *Collector) SetRegisteredUsers(n uint32) {
	c.registeredUsers.Set(float64(n))
}

type nop struct{}

func (nop) RecordExecute(string, error, time.Duration) {}
func (nop) SetRegisteredUsers(uint32)                  {}

// Nop discards everything.
func Nop() Recorder { return nop{} }

// Router serves /metrics from gatherer and a /healthz probe.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
