package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram

	rateLimitAllowedTotal  prometheus.Counter
	rateLimitRejectedTotal *prometheus.CounterVec
	rateLimitErrorsTotal   prometheus.Counter

	cacheLookupsTotal *prometheus.CounterVec

	smsTotal *prometheus.CounterVec

	usageRecordErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initHTTPMetrics(reg)
	s.initAdmissionMetrics(reg)
	s.initCacheMetrics(reg)
	s.initNotifyMetrics(reg)
	return s
}

func (s *PrometheusSink) initHTTPMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schooladmin_http_requests_total",
		Help: "Total number of HTTP requests handled.",
	}, []string{"method", "status_class"})

	s.requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schooladmin_http_request_duration_seconds",
		Help:    "HTTP request handling latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	s.register(reg, s.requestsTotal, "schooladmin_http_requests_total")
	s.register(reg, s.requestDuration, "schooladmin_http_request_duration_seconds")
}

func (s *PrometheusSink) initAdmissionMetrics(reg prometheus.Registerer) {
	s.rateLimitAllowedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schooladmin_ratelimit_allowed_total",
		Help: "Total number of requests admitted by the rate limiter.",
	})
	s.rateLimitRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schooladmin_ratelimit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter.",
	}, []string{"window"})
	s.rateLimitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schooladmin_ratelimit_errors_total",
		Help: "Total number of counter store failures during admission checks.",
	})

	s.register(reg, s.rateLimitAllowedTotal, "schooladmin_ratelimit_allowed_total")
	s.register(reg, s.rateLimitRejectedTotal, "schooladmin_ratelimit_rejected_total")
	s.register(reg, s.rateLimitErrorsTotal, "schooladmin_ratelimit_errors_total")
}

func (s *PrometheusSink) initCacheMetrics(reg prometheus.Registerer) {
	s.cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schooladmin_cache_lookups_total",
		Help: "Total number of response cache lookups.",
	}, []string{"result"})

	s.register(reg, s.cacheLookupsTotal, "schooladmin_cache_lookups_total")
}

func (s *PrometheusSink) initNotifyMetrics(reg prometheus.Registerer) {
	s.smsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schooladmin_sms_total",
		Help: "Total number of absence SMS notification attempts.",
	}, []string{"provider", "outcome"})

	s.usageRecordErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schooladmin_usage_record_errors_total",
		Help: "Total number of failed usage stat writes.",
	})

	s.register(reg, s.smsTotal, "schooladmin_sms_total")
	s.register(reg, s.usageRecordErrorsTotal, "schooladmin_usage_record_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) RequestCompleted(method, statusClass string, duration time.Duration) {
	s.requestsTotal.WithLabelValues(method, statusClass).Inc()
	s.requestDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RateLimitAllowed() {
	s.rateLimitAllowedTotal.Inc()
}

func (s *PrometheusSink) RateLimitRejected(window string) {
	s.rateLimitRejectedTotal.WithLabelValues(window).Inc()
}

func (s *PrometheusSink) RateLimitError() {
	s.rateLimitErrorsTotal.Inc()
}

func (s *PrometheusSink) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (s *PrometheusSink) SMSOutcome(provider, outcome string) {
	s.smsTotal.WithLabelValues(provider, outcome).Inc()
}

func (s *PrometheusSink) UsageRecordError() {
	s.usageRecordErrorsTotal.Inc()
}
