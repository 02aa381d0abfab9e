package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadloop_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_document_persist_failures_total",
		Help: "Document writes that could not reach the store",
	}, []string{"document"})

	flagMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_feature_flag_mutations_total",
		Help: "Feature flag mutations by operation and result",
	}, []string{"operation", "result"})

	leadsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_leads_submitted_total",
		Help: "Lead submissions by outcome",
	}, []string{"outcome"})

	clientsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_clients_ingested_total",
		Help: "Clients created from the notification log by category",
	}, []string{"category"})

	authorizationsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_authorizations_resolved_total",
		Help: "Operator decisions on authorization requests",
	}, []string{"decision"})

	identityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadloop_identity_rejections_total",
		Help: "Lead candidates rejected by the identity guard",
	})

	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadloop_completion_duration_seconds",
		Help:    "Duration of LLM completion attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadloop_job_runs_total",
		Help: "Scheduled job executions by job and result",
	}, []string{"job", "result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObservePersistFailure counts a failed document write.
func ObservePersistFailure(document string) {
	persistFailures.WithLabelValues(document).Inc()
}

// ObserveFlagMutation counts a feature flag operation.
func ObserveFlagMutation(operation, result string) {
	flagMutations.WithLabelValues(operation, result).Inc()
}

// ObserveLeadSubmission counts an intake outcome.
func ObserveLeadSubmission(outcome string) {
	leadsSubmitted.WithLabelValues(outcome).Inc()
}

// ObserveClientIngested counts a created client.
func ObserveClientIngested(category string) {
	clientsIngested.WithLabelValues(category).Inc()
}

// ObserveAuthorizationResolved counts an operator decision.
func ObserveAuthorizationResolved(decision string) {
	authorizationsResolved.WithLabelValues(decision).Inc()
}

// ObserveIdentityRejection counts a guard rejection.
func ObserveIdentityRejection() {
	identityRejections.Inc()
}

// ObserveCompletion records an LLM call with its result label.
func ObserveCompletion(result string, duration time.Duration) {
	completionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveJobRun counts a scheduled job execution.
func ObserveJobRun(job, result string) {
	jobRuns.WithLabelValues(job, result).Inc()
}
