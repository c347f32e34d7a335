package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	batchesTotal     *prometheus.CounterVec
	batchFilesTotal  *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
	deliveriesTotal  *prometheus.CounterVec
	summaryWordCount *prometheus.HistogramVec
	questionsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbrief",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docbrief",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docbrief",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbrief",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Total processed batches by outcome.",
		},
		[]string{"service", "outcome"},
	)
	batchFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbrief",
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Total files that reached a terminal state, by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docbrief",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "End-to-end batch duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	deliveriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbrief",
			Subsystem: "delivery",
			Name:      "messages_total",
			Help:      "Total WhatsApp delivery attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	summaryWordCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docbrief",
			Subsystem: "pipeline",
			Name:      "summary_words",
			Help:      "Distribution of produced summary word counts.",
			Buckets:   []float64{25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"service"},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbrief",
			Subsystem: "qa",
			Name:      "questions_total",
			Help:      "Total follow-up questions by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		batchesTotal,
		batchFilesTotal,
		batchDuration,
		deliveriesTotal,
		summaryWordCount,
		questionsTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		batchesTotal:     batchesTotal,
		batchFilesTotal:  batchFilesTotal,
		batchDuration:    batchDuration,
		deliveriesTotal:  deliveriesTotal,
		summaryWordCount: summaryWordCount,
		questionsTotal:   questionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/session/files/"):
		if strings.HasSuffix(path, "/transcript") {
			return "/v1/session/files/{file_id}/transcript"
		}
		return "/v1/session/files/{file_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordBatch(service string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.batchesTotal.WithLabelValues(service, outcome).Inc()
	m.batchDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordFileOutcome(service, status string) {
	m.batchFilesTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordDelivery(service string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.deliveriesTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordSummaryWords(service string, words int) {
	if words <= 0 {
		return
	}
	m.summaryWordCount.WithLabelValues(service).Observe(float64(words))
}

func (m *HTTPServerMetrics) RecordQuestion(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.questionsTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
