package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RequestCompleted(method, statusClass string, duration time.Duration) {}
func (n *NoopSink) RateLimitAllowed()                                                   {}
func (n *NoopSink) RateLimitRejected(window string)                                     {}
func (n *NoopSink) RateLimitError()                                                     {}
func (n *NoopSink) CacheLookup(hit bool)                                                {}
func (n *NoopSink) SMSOutcome(provider, outcome string)                                 {}
func (n *NoopSink) UsageRecordError()                                                   {}
