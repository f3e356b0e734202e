// Package metrics exposes Prometheus collectors for the sync engine and the
// reference store server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/fieldsync/internal/models"
)

const namespace = "fieldsync"

// Engine collects client-side session metrics. A nil *Engine is a no-op.
type Engine struct {
	transitions   *prometheus.CounterVec
	retries       prometheus.Counter
	drafts        *prometheus.CounterVec
	sessions      prometheus.Gauge
	flushDuration prometheus.Histogram
}

// NewEngine creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewEngine(reg prometheus.Registerer) *Engine {
	e := &Engine{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "retries_total",
			Help:      "Saves rescheduled after a network failure.",
		}),
		drafts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drafts",
			Name:      "restored_total",
			Help:      "Drafts loaded back into sessions.",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "sessions",
			Help:      "Open edit sessions.",
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "flush_duration_seconds",
			Help:      "Time spent in FlushAll.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}

	if reg != nil {
		reg.MustRegister(e.transitions, e.retries, e.drafts, e.sessions, e.flushDuration)
	}
	return e
}

// ObserveState counts a transition into state.
func (e *Engine) ObserveState(state models.State) {
	if e == nil {
		return
	}
	e.transitions.WithLabelValues(state.String()).Inc()
}

// ObserveRetry counts a rescheduled save.
func (e *Engine) ObserveRetry() {
	if e == nil {
		return
	}
	e.retries.Inc()
}

// ObserveRestore counts a draft restore attempt.
func (e *Engine) ObserveRestore(applied bool) {
	if e == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "skipped"
	}
	e.drafts.WithLabelValues(result).Inc()
}

// SessionOpened increments the open session gauge.
func (e *Engine) SessionOpened() {
	if e == nil {
		return
	}
	e.sessions.Inc()
}

// SessionReleased decrements the open session gauge.
func (e *Engine) SessionReleased() {
	if e == nil {
		return
	}
	e.sessions.Dec()
}

// ObserveFlush records the duration of a bulk flush.
func (e *Engine) ObserveFlush(d time.Duration) {
	if e == nil {
		return
	}
	e.flushDuration.Observe(d.Seconds())
}

// Server collects reference store metrics.
type Server struct {
	requests *prometheus.CounterVec
	writes   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer creates the server collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "writes_total",
			Help:      "Conditional field writes by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	if reg != nil {
		reg.MustRegister(s.requests, s.writes, s.latency)
	}
	return s
}

// ObserveWrite counts a write outcome (applied, conflict, rejected, forbidden).
func (s *Server) ObserveWrite(outcome string) {
	if s == nil {
		return
	}
	s.writes.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency.
func (s *Server) Middleware(next http.Handler) http.Handler {
	if s == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
