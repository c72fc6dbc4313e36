package middleware

import (
	"context"
	"time"

	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK    = "ok"
	resultMiss  = "miss"
	resultError = "error"
)

// Metrics holds the prometheus collectors for store operations.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the store collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionstore_operations_total",
				Help: "Total number of session store operations",
			},
			[]string{"op", "backend", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionstore_operation_duration_seconds",
				Help:    "Duration of session store operations",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"op", "backend"},
		),
	}

	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Collectors returns the underlying collectors (operations counter, duration histogram).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.duration}
}

// Middleware returns a middleware recording every operation under the given backend label.
func (m *Metrics) Middleware(backend string) Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &metricsMiddleware{next: next, metrics: m, backend: backend}
	}
}

type metricsMiddleware struct {
	next    ports.SessionStore
	metrics *Metrics
	backend string
}

func (m *metricsMiddleware) Create(ctx context.Context, id string, session *domain.Session) error {
	start := time.Now()
	err := m.next.Create(ctx, id, session)
	m.observe("create", start, result(true, err))
	return err
}

func (m *metricsMiddleware) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	start := time.Now()
	session, ok, err := m.next.Get(ctx, id)
	m.observe("get", start, result(ok, err))
	return session, ok, err
}

func (m *metricsMiddleware) Save(ctx context.Context, id string, session *domain.Session) error {
	start := time.Now()
	err := m.next.Save(ctx, id, session)
	m.observe("save", start, result(true, err))
	return err
}

func (m *metricsMiddleware) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, id)
	m.observe("delete", start, result(true, err))
	return err
}

func (m *metricsMiddleware) observe(op string, start time.Time, res string) {
	m.metrics.duration.WithLabelValues(op, m.backend).Observe(time.Since(start).Seconds())
	m.metrics.operations.WithLabelValues(op, m.backend, res).Inc()
}

func result(found bool, err error) string {
	switch {
	case err != nil:
		return resultError
	case !found:
		return resultMiss
	default:
		return resultOK
	}
}
