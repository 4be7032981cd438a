package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AgentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexgraph_agent_duration_seconds",
			Help:    "Agent request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"route"},
	)

	AgentRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_agent_requests_total",
			Help: "Total number of agent requests",
		},
		[]string{"route", "status"},
	)

	ChosenVote = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexgraph_synthesis_chosen_vote",
			Help:    "Vote of the candidate selected by the synthesis engine",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	DeeperWiderUsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexgraph_synthesis_deeper_wider_total",
			Help: "Answers where the deeper/wider rewrite replaced the chosen candidate",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_llm_calls_total",
			Help: "LLM calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	KGResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexgraph_kg_results_count",
			Help:    "Number of graph rows per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	VectorResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexgraph_vector_results_count",
			Help:    "Number of passages per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	RetrievalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_retrieval_errors_total",
			Help: "Retrieval failures that degraded to empty context",
		},
		[]string{"source"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ChunksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_extraction_chunks_total",
			Help: "Chunks processed by the extraction orchestrator",
		},
		[]string{"status"},
	)

	ParseStageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_extraction_parse_stage_failures_total",
			Help: "Extraction responses rejected per decode stage",
		},
		[]string{"stage"},
	)

	TriplesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexgraph_extraction_triples_total",
			Help: "Candidate triples accepted from extraction responses",
		},
	)

	NormalizedTriples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_normalization_rows_total",
			Help: "Raw triple rows by normalization outcome",
		},
		[]string{"outcome"},
	)

	GraphUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexgraph_graph_upserts_total",
			Help: "Graph loader row upserts",
		},
		[]string{"status"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexgraph_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	KGEntitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexgraph_kg_entities_total",
			Help: "Total entities in knowledge graph",
		},
	)

	KGRelationsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexgraph_kg_relations_total",
			Help: "Total relations in knowledge graph",
		},
	)
)

func Init() {
	prometheus.MustRegister(AgentDuration)
	prometheus.MustRegister(AgentRequests)
	prometheus.MustRegister(ChosenVote)
	prometheus.MustRegister(DeeperWiderUsed)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(KGResultsCount)
	prometheus.MustRegister(VectorResultsCount)
	prometheus.MustRegister(RetrievalErrors)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ChunksProcessed)
	prometheus.MustRegister(ParseStageFailures)
	prometheus.MustRegister(TriplesExtracted)
	prometheus.MustRegister(NormalizedTriples)
	prometheus.MustRegister(GraphUpserts)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(KGEntitiesTotal)
	prometheus.MustRegister(KGRelationsTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
