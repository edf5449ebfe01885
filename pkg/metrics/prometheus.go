// Package metrics exposes Prometheus metrics for backend calls and grading passes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "course_grader"

// statusTransportError labels requests that never received a response.
const statusTransportError = "error"

// Recorder records backend request and grading metrics on its own registry.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	grades          *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// NewRecorder builds a Recorder. Without WithRegistry a fresh registry is used,
// so Go runtime collectors are not exported.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: defaultNamespace,
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(r.registry)
	r.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "requests_total",
		Help:      "Backend requests by operation and HTTP status",
	}, []string{"operation", "status"})
	r.requestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "request_duration_seconds",
		Help:      "Backend request latency in seconds",
		Buckets:   r.buckets,
	}, []string{"operation"})
	r.grades = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "grades_total",
		Help:      "Grade results observed by the watcher, by status",
	}, []string{"status"})
	r.publishFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "publish_failures_total",
		Help:      "Grade events that at least one publisher failed to deliver",
	})
	return r
}

// ObserveRequest implements courses.Observer. statusCode 0 means the request failed in transport.
func (r *Recorder) ObserveRequest(operation string, statusCode int, elapsed time.Duration) {
	if r == nil {
		return
	}
	status := statusTransportError
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.requests.WithLabelValues(operation, status).Inc()
	r.requestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveGrade counts a grade result by its status.
func (r *Recorder) ObserveGrade(status string) {
	if r == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	r.grades.WithLabelValues(status).Inc()
}

// ObservePublishFailure counts an event with failed deliveries.
func (r *Recorder) ObservePublishFailure() {
	if r == nil {
		return
	}
	r.publishFailures.Inc()
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
