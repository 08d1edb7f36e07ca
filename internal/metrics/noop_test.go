package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_ImplementsSink(t *testing.T) {
	var _ Sink = NewNoopSink()
}

func TestNoopSink_MethodsDoNotPanic(t *testing.T) {
	sink := NewNoopSink()

	sink.RequestCompleted("GET", "2xx", time.Millisecond)
	sink.RateLimitAllowed()
	sink.RateLimitRejected("minute")
	sink.RateLimitError()
	sink.CacheLookup(true)
	sink.CacheLookup(false)
	sink.SMSOutcome("log", OutcomeSuccess)
	sink.UsageRecordError()
}
