// Package metrics exposes Prometheus collectors for the HTTP surface, the
// contract gateway and the wallet session.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/internal/wallet"
)

const namespace = "cuffie"

// Collector owns a private registry so tests and multiple daemons in one
// process never collide on the default registerer.
type Collector struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	contractCalls *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	connected     prometheus.Gauge
	changes       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"handler", "method", "code"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Total number of HTTP requests that resulted in a server error.",
		}, []string{"handler", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"handler", "method"}),
		contractCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_calls_total",
			Help:      "Read-only contract calls by method and result code.",
		}, []string{"method", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_submissions_total",
			Help:      "Transaction submissions by method and result code.",
		}, []string{"method", "result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_connected",
			Help:      "1 while a wallet provider and account are selected.",
		}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_session_changes_total",
			Help:      "Number of session change notifications.",
		}),
	}
	c.registry.MustRegister(
		c.requests, c.requestErrors, c.latency,
		c.contractCalls, c.submissions,
		c.connected, c.changes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the metrics in Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (c *Collector) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c.requests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		c.requestErrors.WithLabelValues(handler, method).Inc()
	}
	c.latency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveContractCall implements the gateway observer.
func (c *Collector) ObserveContractCall(method string, err error) {
	c.contractCalls.WithLabelValues(method, result(err)).Inc()
}

// ObserveSubmission implements the gateway observer.
func (c *Collector) ObserveSubmission(method string, err error) {
	c.submissions.WithLabelValues(method, result(err)).Inc()
}

// SessionChanged implements wallet.Listener.
func (c *Collector) SessionChanged(info wallet.AccountInfo) {
	c.changes.Inc()
	if info.Connected() {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

// Middleware wraps next and records status and latency under handler.
func (c *Collector) Middleware(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.ObserveHTTPRequest(handler, r.Method, rec.status, time.Since(start))
	})
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(xerrors.CodeOf(err))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for WebSocket upgrades.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ wallet.Listener = (*Collector)(nil)
