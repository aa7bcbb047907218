package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Analysis outcomes.
const (
	OutcomeStructured    = "structured"
	OutcomeFallback      = "fallback"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTransport     = "transport_error"
	OutcomeRejected      = "rejected"
	OutcomeStoreError    = "store_error"
)

type Metrics struct {
	analyses         *prometheus.CounterVec
	inferenceLatency prometheus.Histogram
	inFlight         prometheus.Gauge
	telemetryIngest  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	analyses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fungiscan_analyses_total",
		Help: "Image analyses by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fungiscan_inference_latency_seconds",
		Help:    "Round trip to the inference service, retries included.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fungiscan_analyses_in_flight",
		Help: "Analyses currently holding an inference slot.",
	})
	ingest := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fungiscan_telemetry_readings_total",
		Help: "Telemetry readings stored.",
	})

	reg.MustRegister(analyses, latency, inFlight, ingest)

	return &Metrics{
		analyses:         analyses,
		inferenceLatency: latency,
		inFlight:         inFlight,
		telemetryIngest:  ingest,
	}
}

func (m *Metrics) ObserveAnalysis(outcome string) {
	m.analyses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveInferenceLatency(seconds float64) {
	m.inferenceLatency.Observe(seconds)
}

func (m *Metrics) AnalysisStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) AnalysisFinished() {
	m.inFlight.Dec()
}

func (m *Metrics) TelemetryStored() {
	m.telemetryIngest.Inc()
}
