package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matrix_ai_analysis_duration_seconds",
			Help:    "Text analysis duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_analysis_total",
			Help: "Total number of texts analyzed",
		},
		[]string{"status"},
	)

	ThreatLevelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_threat_level_total",
			Help: "Analysis verdicts by threat level",
		},
		[]string{"level"},
	)

	HighRiskTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matrix_ai_high_risk_total",
			Help: "Total number of high-risk classifications",
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matrix_ai_confidence_score",
			Help:    "Classifier confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EventsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matrix_ai_events_created_total",
			Help: "Total monitoring events created",
		},
	)

	EventTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_event_transitions_total",
			Help: "Event status transitions by target status",
		},
		[]string{"status"},
	)

	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_training_runs_total",
			Help: "Model training runs",
		},
		[]string{"status"},
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matrix_ai_training_duration_seconds",
			Help:    "Model training duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ModelAccuracy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matrix_ai_model_accuracy",
			Help: "Final accuracy of the last training run",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_ai_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(ThreatLevelTotal)
	prometheus.MustRegister(HighRiskTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(EventsCreated)
	prometheus.MustRegister(EventTransitions)
	prometheus.MustRegister(TrainingRuns)
	prometheus.MustRegister(TrainingDuration)
	prometheus.MustRegister(ModelAccuracy)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
