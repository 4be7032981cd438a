package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/evaluation"
	"github.com/lexgraph/backend/internal/kg/neo4j"
	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/retrieval"
	"github.com/lexgraph/backend/internal/storage/sqlite"
	"github.com/lexgraph/backend/internal/synthesis"
	"github.com/lexgraph/backend/internal/vector/provider"
	"github.com/lexgraph/backend/pkg/config"
	appLogger "github.com/lexgraph/backend/pkg/logger"
)

func main() {
	datasetPath := flag.String("dataset", "eval.json", "JSON array of {query, ground_truth}")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging, "eval")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(*datasetPath)
	if err != nil {
		appLogger.Fatal("Failed to read dataset", zap.String("path", *datasetPath), zap.Error(err))
	}
	items, err := evaluation.LoadDataset(data)
	if err != nil {
		appLogger.Fatal("Failed to parse dataset", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(cfg.Neo4j)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	vectorStore, err := provider.Open(cfg.Vector)
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	llmClient, err := llm.NewClient(cfg.LLM, llm.WithoutCircuitBreaker())
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// No answer cache: every item must reach the oracle.
	lawAgent := agent.New(
		llmClient,
		retrieval.NewGraphRetriever(llmClient, neo4jClient),
		retrieval.NewVectorRetriever(llmClient, llmClient, vectorStore, cfg.Retrieval.TopK),
		synthesis.NewEngine(llmClient, cfg.Synthesis),
	)

	report := evaluation.NewEvaluator(lawAgent, llmClient, sqliteClient).RunDatasetEvaluation(ctx, items)
	fmt.Print(evaluation.GenerateReport(report))
}
