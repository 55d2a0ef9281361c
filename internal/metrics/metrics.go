package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service's Prometheus collectors on a private registry.
// A nil *Recorder records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	handler         http.Handler
	operations      *prometheus.CounterVec
	events          *prometheus.CounterVec
	score           prometheus.Histogram
	storeDuration   *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_operations_total",
		Help: "Credibility operations by kind and result",
	}, []string{"op", "result"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credence_events_total",
		Help: "History events appended, by kind",
	}, []string{"kind"})

	score := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "credence_score",
		Help:    "Credibility score after each mutating operation",
		Buckets: []float64{39, 59, 74, 89, 94, 100},
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credence_store_duration_seconds",
		Help:    "State store latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	registry.MustRegister(operations, events, score, storeDuration, requestDuration)

	return &Recorder{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		operations:      operations,
		events:          events,
		score:           score,
		storeDuration:   storeDuration,
		requestDuration: requestDuration,
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Operation counts one processor operation. A nil err is recorded as "ok".
func (r *Recorder) Operation(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.operations.WithLabelValues(op, result).Inc()
}

func (r *Recorder) Event(kind string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(kind).Inc()
}

func (r *Recorder) Score(score int) {
	if r == nil {
		return
	}
	r.score.Observe(float64(score))
}

func (r *Recorder) StoreDuration(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) HTTPRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
