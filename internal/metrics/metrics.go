package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleet"

const (
	ResultAccepted   = "accepted"
	ResultInvalid    = "invalid"
	ResultStoreError = "store_error"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	heartbeats    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	machines      *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeats received, by outcome.",
		}, []string{"result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of state store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "State store operations that failed.",
		}, []string{"operation"}),
		machines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machines",
			Help:      "Machines by liveness status in the most recent snapshot.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.heartbeats, m.storeDuration, m.storeErrors, m.machines)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHeartbeat(result string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(result).Inc()
}

func (m *Metrics) SetMachines(counts map[string]int) {
	if m == nil {
		return
	}
	m.machines.Reset()
	for status, n := range counts {
		m.machines.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Metrics) observeStore(op string, start time.Time, err error) {
	m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, context.Canceled) {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// InstrumentStore wraps s so every operation is timed. With a nil m it
// returns s unchanged.
func InstrumentStore(s machines.Store, m *Metrics) machines.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{next: s, metrics: m}
}

type instrumentedStore struct {
	next    machines.Store
	metrics *Metrics
}

func (s *instrumentedStore) Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (machines.Record, error) {
	start := time.Now()
	rec, err := s.next.Upsert(ctx, machineID, clientID, runningPrograms, now)
	s.metrics.observeStore("upsert", start, err)
	return rec, err
}

func (s *instrumentedStore) ListAll(ctx context.Context) ([]machines.Record, error) {
	start := time.Now()
	recs, err := s.next.ListAll(ctx)
	s.metrics.observeStore("list", start, err)
	return recs, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
