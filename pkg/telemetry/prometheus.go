package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ripixel/fitglue-vision/pkg/ai"
)

const namespace = "vision"

// PrometheusRecorder keeps extraction metrics in its own registry so several
// instances (tests, multiple functions) never collide.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	extractions       *prometheus.CounterVec
	extractionSeconds *prometheus.HistogramVec
	confidence        *prometheus.HistogramVec
	aiCallSeconds     *prometheus.HistogramVec
	aiAttempts        *prometheus.CounterVec
	imageBytes        *prometheus.HistogramVec
}

func NewPrometheusRecorder() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extractions by domain, outcome and error kind.",
		}, []string{"domain", "outcome", "kind"}),
		extractionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "End-to-end extraction latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"domain", "outcome"}),
		confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_score",
			Help:      "Confidence of successfully parsed records.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"domain"}),
		aiCallSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "Latency of individual AI attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "class"}),
		aiAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_attempts_total",
			Help:      "AI attempts by backend, attempt number and result class.",
		}, []string{"backend", "attempt", "class"}),
		imageBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_bytes",
			Help:      "Image payload sizes before and after preprocessing.",
			Buckets:   prometheus.ExponentialBuckets(32<<10, 2, 10),
		}, []string{"stage"}),
	}

	p.registry.MustRegister(
		p.extractions,
		p.extractionSeconds,
		p.confidence,
		p.aiCallSeconds,
		p.aiAttempts,
		p.imageBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the underlying registry, mostly for tests.
func (p *PrometheusRecorder) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt matches ai.AttemptObserver.
func (p *PrometheusRecorder) ObserveAttempt(backend string, attempt int, elapsed time.Duration, err error) {
	class := "ok"
	if err != nil {
		class = string(ai.Classify(err))
	}
	p.aiAttempts.WithLabelValues(backend, strconv.Itoa(attempt), class).Inc()
	p.aiCallSeconds.WithLabelValues(backend, class).Observe(elapsed.Seconds())
}

func (p *PrometheusRecorder) ImageProcessed(_ context.Context, e ImageProcessed) {
	p.imageBytes.WithLabelValues("original").Observe(float64(e.OriginalSize))
	p.imageBytes.WithLabelValues("processed").Observe(float64(e.NewSize))
}

// AICallCompleted is covered per attempt by ObserveAttempt.
func (p *PrometheusRecorder) AICallCompleted(context.Context, AICallCompleted) {}

func (p *PrometheusRecorder) ExtractionSucceeded(_ context.Context, e ExtractionSucceeded) {
	d := string(e.Domain)
	p.extractions.WithLabelValues(d, "success", "none").Inc()
	p.extractionSeconds.WithLabelValues(d, "success").Observe(e.Duration.Seconds())
	if e.Metadata != nil {
		p.confidence.WithLabelValues(d).Observe(e.Metadata.Confidence())
	}
}

func (p *PrometheusRecorder) ExtractionFailed(_ context.Context, e ExtractionFailed) {
	d := string(e.Domain)
	outcome := "empty"
	if e.Fallback {
		outcome = "fallback"
	}
	p.extractions.WithLabelValues(d, outcome, string(e.Kind)).Inc()
	p.extractionSeconds.WithLabelValues(d, outcome).Observe(e.Duration.Seconds())
}
