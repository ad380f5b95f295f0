package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compliance_rag_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_rag_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compliance_rag_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	QueryRiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compliance_rag_query_risk_score",
			Help:    "Risk scores assigned to incoming queries",
			Buckets: []float64{0, 10, 25, 50, 70, 100},
		},
	)

	AlertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_rag_alerts_triggered_total",
			Help: "Total compliance alerts triggered",
		},
		[]string{"type", "severity"},
	)

	VectorResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compliance_rag_vector_results_count",
			Help:    "Number of vector results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compliance_rag_documents_processed_total",
			Help: "Total documents processed",
		},
	)

	ComplianceScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "compliance_rag_compliance_score",
			Help: "Latest overall compliance score",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(QueryRiskScore)
	prometheus.MustRegister(AlertsTriggered)
	prometheus.MustRegister(VectorResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ComplianceScore)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
