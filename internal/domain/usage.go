package domain

import "time"

// RequestStat describes one handled HTTP request. Records are append-only:
// once written to the usage store they are never mutated.
type RequestStat struct {
	ID         string        `json:"id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status"`
	Duration   time.Duration `json:"-"`
	DurationMS float64       `json:"time_ms"`
	ClientIP   string        `json:"ip"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Endpoint returns the "METHOD /path" identity used as the aggregation key
// for per-endpoint counters and response times.
func (s RequestStat) Endpoint() string {
	return s.Method + " " + s.Path
}
