package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Classifier metrics
	ClassifierInvocations *prometheus.CounterVec
	ClassifierLatency     *prometheus.HistogramVec

	// Fusion metrics
	FusionCalls     *prometheus.CounterVec
	FusionRiskHint  prometheus.Histogram
	TurnsInFlight   prometheus.Gauge
	TurnProcessTime prometheus.Histogram

	// Assessment metrics
	AssessmentsTotal     *prometheus.CounterVec
	AssessmentRisk       prometheus.Histogram
	InterventionsTotal   *prometheus.CounterVec
	CollaboratorTimeouts *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ClassifierInvocations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_classifier_invocations_total",
				Help: "Total number of classifier invocations",
			},
			[]string{"modality", "outcome"},
		)

		ClassifierLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "manas_classifier_latency_seconds",
				Help:    "Latency of classifier invocations",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // From 0.1ms to ~400ms
			},
			[]string{"modality"},
		)

		FusionCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_fusion_calls_total",
				Help: "Total number of fusion invocations",
			},
			[]string{"modalities"},
		)

		FusionRiskHint = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "manas_fusion_risk_hint",
				Help:    "Distribution of fused risk hints",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		)

		TurnsInFlight = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "manas_turns_in_flight",
				Help: "Number of turns currently being processed",
			},
		)

		TurnProcessTime = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "manas_turn_processing_seconds",
				Help:    "End to end processing time per turn",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
		)

		AssessmentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_assessments_total",
				Help: "Total number of risk assessments by category",
			},
			[]string{"category"},
		)

		AssessmentRisk = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "manas_assessment_combined_risk",
				Help:    "Distribution of combined risk scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		)

		InterventionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_interventions_total",
				Help: "Total number of intervention plans by protocol",
			},
			[]string{"protocol"},
		)

		CollaboratorTimeouts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_collaborator_timeouts_total",
				Help: "Total number of external collaborator timeouts",
			},
			[]string{"collaborator"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_amqp_published_messages_total",
				Help: "Total number of audit messages published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manas_amqp_connection_errors_total",
				Help: "Total number of AMQP connection errors",
			},
			[]string{"type"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "manas_amqp_connection_status",
				Help: "Status of AMQP connection (1=connected, 0=disconnected)",
			},
		)

		registry.MustRegister(
			ClassifierInvocations,
			ClassifierLatency,
			FusionCalls,
			FusionRiskHint,
			TurnsInFlight,
			TurnProcessTime,
			AssessmentsTotal,
			AssessmentRisk,
			InterventionsTotal,
			CollaboratorTimeouts,
			AMQPPublishedMessages,
			AMQPConnectionErrors,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetMetricsPath sets the HTTP path for metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// SetMetricsEnabled enables or disables metrics collection
func SetMetricsEnabled(enabled bool) {
	metricsEnabled = enabled
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		SetMetricsEnabled(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	SetMetricsEnabled(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// RecordClassifierInvocation counts one classifier run by outcome.
func RecordClassifierInvocation(modality, outcome string) {
	if metricsEnabled && ClassifierInvocations != nil {
		ClassifierInvocations.WithLabelValues(modality, outcome).Inc()
	}
}

// ObserveClassifierLatency returns a completion function that records the
// elapsed time when called.
func ObserveClassifierLatency(modality string) func() {
	if !metricsEnabled || ClassifierLatency == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		ClassifierLatency.WithLabelValues(modality).Observe(time.Since(start).Seconds())
	}
}

// RecordFusion counts one fusion call and its risk hint.
func RecordFusion(modalities string, riskHint float64) {
	if metricsEnabled && FusionCalls != nil {
		FusionCalls.WithLabelValues(modalities).Inc()
		FusionRiskHint.Observe(riskHint)
	}
}

// RecordAssessment counts one assessment by category.
func RecordAssessment(category string, combinedRisk float64) {
	if metricsEnabled && AssessmentsTotal != nil {
		AssessmentsTotal.WithLabelValues(category).Inc()
		AssessmentRisk.Observe(combinedRisk)
	}
}

// RecordIntervention counts one selected intervention protocol.
func RecordIntervention(protocol string) {
	if metricsEnabled && InterventionsTotal != nil {
		InterventionsTotal.WithLabelValues(protocol).Inc()
	}
}

// RecordCollaboratorTimeout counts one timed-out external call.
func RecordCollaboratorTimeout(collaborator string) {
	if metricsEnabled && CollaboratorTimeouts != nil {
		CollaboratorTimeouts.WithLabelValues(collaborator).Inc()
	}
}

// StartTurnTimer tracks an in-flight turn and returns a completion
// function recording the total processing time.
func StartTurnTimer() func() {
	if !metricsEnabled || TurnsInFlight == nil {
		return func() {}
	}

	TurnsInFlight.Inc()
	start := time.Now()
	return func() {
		TurnsInFlight.Dec()
		TurnProcessTime.Observe(time.Since(start).Seconds())
	}
}

// RecordAMQPPublish counts one publish attempt
func RecordAMQPPublish(queue, status string) {
	if metricsEnabled && AMQPPublishedMessages != nil {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// RecordAMQPConnectionError counts one connection failure
func RecordAMQPConnectionError(errorType string) {
	if metricsEnabled && AMQPConnectionErrors != nil {
		AMQPConnectionErrors.WithLabelValues(errorType).Inc()
	}
}

// SetAMQPConnectionStatus updates the connection status gauge
func SetAMQPConnectionStatus(connected bool) {
	if metricsEnabled && AMQPConnectionStatus != nil {
		if connected {
			AMQPConnectionStatus.Set(1)
		} else {
			AMQPConnectionStatus.Set(0)
		}
	}
}
