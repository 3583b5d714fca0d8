// Package metrics defines the Prometheus series recorded for calls made to the
// resource and identity services.
//
// A CLI process is not scraped, so WriteTextfile dumps the default registry in
// the node_exporter textfile format when LIBRARY_METRICS_FILE is set.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "library_client"

// RequestsTotal counts outbound requests.
// Labels:
//   - service: "resource" or "identity"
//   - method: HTTP method
//   - code: response status, or "error" when no response arrived
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of requests sent to the library backends.",
	},
	[]string{"service", "method", "code"},
)

// RequestDuration measures round-trip time per service.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Round-trip duration of requests sent to the library backends.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"service"},
)

// SessionTeardownsTotal counts sessions cleared after the resource service
// rejected the bearer token.
var SessionTeardownsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_teardowns_total",
		Help:      "Total number of sessions cleared because a request came back unauthorized.",
	},
)

// OrphanedIdentitiesTotal counts provisioning attempts that created an
// identity record but no profile.
var OrphanedIdentitiesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphaned_identities_total",
		Help:      "Total number of identity records left without a resource profile.",
	},
)

// ObserveRequest records one outbound call. status 0 means the call failed
// before a response was read.
func ObserveRequest(service, method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	RequestsTotal.WithLabelValues(service, method, code).Inc()
	RequestDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// WriteTextfile writes every registered series to path.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
