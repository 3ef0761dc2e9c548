package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mortgage_rag_chat_duration_seconds",
			Help:    "End to end chat request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_questions_total",
			Help: "Total questions processed by outcome",
		},
		[]string{"status"},
	)

	QuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_quota_rejections_total",
			Help: "Total questions rejected by usage limits",
		},
		[]string{"reason"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_rate_limit_rejections_total",
			Help: "Total requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	ChunksRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mortgage_rag_chunks_retrieved",
			Help:    "Number of chunks retrieved per question",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	SourcesReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mortgage_rag_sources_returned",
			Help:    "Number of deduplicated sources returned per question",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	GroundingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_grounding_outcomes_total",
			Help: "Grounding validation outcomes",
		},
		[]string{"outcome"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mortgage_rag_documents_ingested_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mortgage_rag_chunks_indexed_total",
			Help: "Total chunks embedded and indexed",
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mortgage_rag_feedback_total",
			Help: "Total feedback submissions",
		},
		[]string{"helpful"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(QuestionsTotal)
	prometheus.MustRegister(QuotaRejections)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(ChunksRetrieved)
	prometheus.MustRegister(SourcesReturned)
	prometheus.MustRegister(GroundingOutcomes)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(FeedbackTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
