package ratelimit

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/abolsttar/school-management/internal/metrics"
)

// Middleware gates every request through the limiter before the wrapped
// handler runs. Paths in skip are exempt (health probes, metrics).
//
// A rejected request gets 429 with a Retry-After header for the window that
// rejected it. A counter store failure gets 503: admission never fails open.
type Middleware struct {
	limiter *Limiter
	next    http.Handler
	skip    map[string]bool
	sink    metrics.Sink
}

func NewMiddleware(limiter *Limiter, next http.Handler, skipPaths []string) *Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Middleware{
		limiter: limiter,
		next:    next,
		skip:    skip,
		sink:    metrics.NewNoopSink(),
	}
}

// WithMetrics sets the metrics sink for admission decisions.
func (m *Middleware) WithMetrics(sink metrics.Sink) *Middleware {
	m.sink = sink
	return m
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.skip[r.URL.Path] {
		m.next.ServeHTTP(w, r)
		return
	}

	identity := ClientIP(r)

	decision, err := m.limiter.Check(r.Context(), identity)
	if err != nil {
		log.Printf("ratelimit: admission check failed for %s: %v", identity, err)
		m.sink.RateLimitError()
		writeLimitError(w, http.StatusServiceUnavailable, "rate limiter unavailable", 0)
		return
	}

	if !decision.Allowed {
		log.Printf("ratelimit: %s limit exceeded for %s: %d requests (limit %d)",
			decision.Window, identity, decision.Count, decision.Limit)
		m.sink.RateLimitRejected(decision.Window)
		msg := "Rate limit exceeded. Please try again later."
		if decision.Window == WindowHour {
			msg = "Hourly rate limit exceeded. Please try again later."
		}
		writeLimitError(w, http.StatusTooManyRequests, msg, int(decision.RetryAfter.Seconds()))
		return
	}

	m.sink.RateLimitAllowed()
	m.next.ServeHTTP(w, r)
}

func writeLimitError(w http.ResponseWriter, status int, msg string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// ClientIP derives the client identity used as the counter partition key:
// the first hop of X-Forwarded-For when present, otherwise the connection's
// remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
