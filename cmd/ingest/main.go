package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/ingestion"
	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/storage/tables"
	"github.com/lexgraph/backend/internal/vector/provider"
	"github.com/lexgraph/backend/pkg/config"
	appLogger "github.com/lexgraph/backend/pkg/logger"
)

func main() {
	dir := flag.String("dir", "data", "directory with .pdf and .html law documents")
	out := flag.String("out", "", "chunk table path (defaults to paths.chunksCSV)")
	index := flag.Bool("index", false, "embed chunks and upsert them into the vector store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging, "ingest")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if *out == "" {
		*out = cfg.Paths.ChunksCSV
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.NewClient(cfg.LLM, llm.WithoutCircuitBreaker())
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	processor := ingestion.NewProcessor(llmClient, cfg.Ingestion)
	chunks, err := processor.ProcessDir(ctx, *dir)
	if err != nil {
		appLogger.Fatal("Failed to ingest documents", zap.String("dir", *dir), zap.Error(err))
	}

	if err := tables.WriteChunks(*out, chunks); err != nil {
		appLogger.Fatal("Failed to write chunk table", zap.Error(err))
	}
	appLogger.Info("Chunk table written", zap.String("path", *out), zap.Int("chunks", len(chunks)))

	if !*index {
		return
	}

	store, err := provider.Open(cfg.Vector)
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	if err := ingestion.NewIndexer(llmClient, store).Index(ctx, chunks); err != nil {
		appLogger.Fatal("Failed to index chunks", zap.Error(err))
	}
	appLogger.Info("Chunks indexed", zap.Int("chunks", len(chunks)), zap.String("provider", cfg.Vector.Provider))
}
