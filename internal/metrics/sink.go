package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// HTTP metrics
	RequestCompleted(method, statusClass string, duration time.Duration)

	// Admission metrics
	RateLimitAllowed()
	RateLimitRejected(window string)
	RateLimitError()

	// Response cache metrics
	CacheLookup(hit bool)

	// Notification metrics
	SMSOutcome(provider, outcome string)

	// Usage recorder metrics
	UsageRecordError()
}

// Outcome constants for SMSOutcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// StatusClass maps an HTTP status code to its class label.
func StatusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
