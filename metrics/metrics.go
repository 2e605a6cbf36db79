package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/schema"
)

// Metrics holds the pipeline counters on a private registry.
type Metrics struct {
	reg        *prometheus.Registry
	chunkTasks *prometheus.CounterVec
	stmtTasks  *prometheus.CounterVec
	retries    *prometheus.CounterVec
	stages     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		chunkTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlens_chunk_tasks_total",
			Help: "Per-chunk collaborator calls by operation and outcome.",
		}, []string{"operation", "status"}),
		stmtTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlens_statement_tasks_total",
			Help: "Statement analyses by outcome.",
		}, []string{"status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlens_retries_total",
			Help: "Retried collaborator calls by operation.",
		}, []string{"operation"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimlens_stage_seconds",
			Help:    "Wall time of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"stage"}),
	}
	m.reg.MustRegister(m.chunkTasks, m.stmtTasks, m.retries, m.stages)
	return m
}

func (m *Metrics) ChunkTask(operation string, status schema.Status) {
	m.chunkTasks.WithLabelValues(operation, string(status)).Inc()
}

func (m *Metrics) StatementTask(status schema.Status) {
	m.stmtTasks.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) Stage(name string, d time.Duration) {
	m.stages.WithLabelValues(name).Observe(d.Seconds())
}

// OnRetry matches retry.Policy.OnRetry.
func (m *Metrics) OnRetry(op string, _ int, _ error) {
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		log.WithField("addr", addr).Info("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
}
