package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every procurement-service collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Tenant context metrics
	TenantContextMissingCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Procurement metrics
	RequestsCreated            *prometheus.CounterVec
	RequestsSkipped            prometheus.Counter
	StatusTransitions          *prometheus.CounterVec
	ConversationsCreated       prometheus.Counter
	ConversationsAlreadyActive prometheus.Counter
	MessagesQueued             prometheus.Counter
	MessagesDelivered          *prometheus.CounterVec
	QuotesAdded                *prometheus.CounterVec
	Recommendations            prometheus.Counter
	BackfillRuns               *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, every name prefixed with prefix
func NewMetrics(reg prometheus.Registerer, prefix string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthAttemptsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		}),
		AuthSuccessCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		}),
		AuthErrorsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		}),
		TenantContextMissingCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Total number of requests without tenant context",
		}),
		DbOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),
		RequestsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_created_total",
				Help: "Procurement requests created, by trigger type",
			},
			[]string{"trigger"},
		),
		RequestsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_requests_skipped_total",
			Help: "Request creations skipped because an open request already existed",
		}),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_status_transitions_total",
				Help: "Procurement request status transitions",
			},
			[]string{"to"},
		),
		ConversationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_conversations_created_total",
			Help: "Supplier conversations created by outreach",
		}),
		ConversationsAlreadyActive: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_conversations_already_active_total",
			Help: "Outreach attempts that found the conversation already present",
		}),
		MessagesQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_messages_queued_total",
			Help: "Outbound messages queued",
		}),
		MessagesDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_messages_delivered_total",
				Help: "Outbound message delivery outcomes",
			},
			[]string{"status"},
		),
		QuotesAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_quotes_added_total",
				Help: "Supplier quotes recorded, by source",
			},
			[]string{"source"},
		),
		Recommendations: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_recommendations_total",
			Help: "Quotes marked as recommended",
		}),
		BackfillRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_backfill_runs_total",
				Help: "Low-stock backfill runs, by result",
			},
			[]string{"result"},
		),
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordRequestCreated counts a new procurement request
func (m *Metrics) RecordRequestCreated(trigger string) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(trigger).Inc()
}

// RecordRequestSkipped counts a creation absorbed by the open-request dedup
func (m *Metrics) RecordRequestSkipped() {
	if m == nil {
		return
	}
	m.RequestsSkipped.Inc()
}

// RecordTransition counts a status change
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Inc()
}

// RecordOutreach counts the outcome of one outreach invocation
func (m *Metrics) RecordOutreach(created, alreadyActive, queued int) {
	if m == nil {
		return
	}
	m.ConversationsCreated.Add(float64(created))
	m.ConversationsAlreadyActive.Add(float64(alreadyActive))
	m.MessagesQueued.Add(float64(queued))
}

// RecordDelivery counts a delivery outcome reported for an outbound message
func (m *Metrics) RecordDelivery(status string) {
	if m == nil {
		return
	}
	m.MessagesDelivered.WithLabelValues(status).Inc()
}

// RecordQuote counts a recorded quote
func (m *Metrics) RecordQuote(source string) {
	if m == nil {
		return
	}
	m.QuotesAdded.WithLabelValues(source).Inc()
}

// RecordRecommendation counts a recommend action
func (m *Metrics) RecordRecommendation() {
	if m == nil {
		return
	}
	m.Recommendations.Inc()
}

// RecordBackfill counts a backfill run
func (m *Metrics) RecordBackfill(result string) {
	if m == nil {
		return
	}
	m.BackfillRuns.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one handled request and observes its duration
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordAuthAttempt counts a request that presented credentials
func (m *Metrics) RecordAuthAttempt() {
	if m == nil {
		return
	}
	m.AuthAttemptsCounter.Inc()
}

// RecordAuthSuccess counts a request whose token validated
func (m *Metrics) RecordAuthSuccess() {
	if m == nil {
		return
	}
	m.AuthSuccessCounter.Inc()
}

// RecordAuthError counts a rejected token or header
func (m *Metrics) RecordAuthError() {
	if m == nil {
		return
	}
	m.AuthErrorsCounter.Inc()
}

// RecordTenantContextMissing counts a valid token that carried no tenant
func (m *Metrics) RecordTenantContextMissing() {
	if m == nil {
		return
	}
	m.TenantContextMissingCounter.Inc()
}
