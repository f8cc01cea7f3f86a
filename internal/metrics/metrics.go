// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage outcomes recorded by ObserveStage.
const (
	OutcomeClean          = "clean"
	OutcomeFailures       = "failures"
	OutcomeTransportError = "transport_error"
	OutcomeDiscarded      = "discarded"
)

var (
	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userimport_stage_runs_total",
		Help: "Validate and import stage runs by outcome",
	}, []string{"stage", "outcome"})

	stageRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userimport_stage_rows_total",
		Help: "Rows processed by stage and result",
	}, []string{"stage", "result"})

	backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userimport_backend_call_duration_seconds",
		Help:    "Duration of backend gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"variant", "method", "result"})

	uploadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userimport_upload_rejections_total",
		Help: "Uploads rejected before a batch was produced, by reason",
	}, []string{"reason"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userimport_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userimport_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userimport_rpc_requests_total",
		Help: "User service RPCs handled, by method and status code",
	}, []string{"method", "code"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "userimport_active_sessions",
		Help: "Number of open import sessions",
	})
)

// ObserveStage records one validate or import run and its row counts.
func ObserveStage(stage, outcome string, successful, failed int) {
	stageRuns.WithLabelValues(stage, outcome).Inc()
	if successful > 0 {
		stageRows.WithLabelValues(stage, "successful").Add(float64(successful))
	}
	if failed > 0 {
		stageRows.WithLabelValues(stage, "failed").Add(float64(failed))
	}
}

// ObserveBackendCall records the latency of a gateway call.
func ObserveBackendCall(variant, method, result string, duration time.Duration) {
	backendCallDuration.WithLabelValues(variant, method, result).Observe(duration.Seconds())
}

// ObserveUploadRejection increments the rejection counter for reason.
func ObserveUploadRejection(reason string) {
	uploadRejections.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveRPC records one handled user service RPC.
func ObserveRPC(method, code string) {
	rpcRequestsTotal.WithLabelValues(method, code).Inc()
}

// SetActiveSessions sets the open session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
