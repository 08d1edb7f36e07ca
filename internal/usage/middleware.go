package usage

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/abolsttar/school-management/internal/domain"
	"github.com/abolsttar/school-management/internal/metrics"
	"github.com/abolsttar/school-management/internal/ratelimit"
)

// Recorder persists one request stat.
type Recorder interface {
	Record(ctx context.Context, stat domain.RequestStat) error
}

// Middleware records one RequestStat per handled request. Recording happens
// after the response is written and never fails the request. Paths in skip
// are exempt (health probes, metrics).
type Middleware struct {
	recorder Recorder
	next     http.Handler
	skip     map[string]bool
	sink     metrics.Sink
	now      func() time.Time
}

func NewMiddleware(recorder Recorder, next http.Handler, skipPaths []string) *Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Middleware{
		recorder: recorder,
		next:     next,
		skip:     skip,
		sink:     metrics.NewNoopSink(),
		now:      time.Now,
	}
}

// WithMetrics sets the metrics sink.
func (m *Middleware) WithMetrics(sink metrics.Sink) *Middleware {
	m.sink = sink
	return m
}

// WithClock sets the time source. Used by tests.
func (m *Middleware) WithClock(now func() time.Time) *Middleware {
	m.now = now
	return m
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.skip[r.URL.Path] {
		m.next.ServeHTTP(w, r)
		return
	}

	start := m.now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	m.next.ServeHTTP(rec, r)

	duration := m.now().Sub(start)
	stat := domain.RequestStat{
		ID:         uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: rec.status,
		Duration:   duration,
		DurationMS: float64(duration.Microseconds()) / 1000,
		ClientIP:   ratelimit.ClientIP(r),
		Timestamp:  start,
	}

	m.sink.RequestCompleted(stat.Method, metrics.StatusClass(stat.StatusCode), duration)

	if err := m.recorder.Record(r.Context(), stat); err != nil {
		log.Printf("usage: failed to record %s: %v", stat.Endpoint(), err)
		m.sink.UsageRecordError()
	}
}

// statusRecorder captures the status code written by the wrapped handler.
// A handler that never calls WriteHeader implicitly writes 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
