package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/extraction"
	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/internal/storage/sqlite"
	"github.com/lexgraph/backend/internal/storage/tables"
	"github.com/lexgraph/backend/pkg/config"
	appLogger "github.com/lexgraph/backend/pkg/logger"
)

func main() {
	in := flag.String("chunks", "", "chunk table path (defaults to paths.chunksCSV)")
	triplesOut := flag.String("triples", "", "raw triples table path (defaults to paths.triplesCSV)")
	failedOut := flag.String("failed", "", "failed chunks table path (defaults to paths.failedCSV)")
	workers := flag.Int("workers", 0, "concurrent oracle calls (defaults to extraction.workers)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging, "extract")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	orDefault(in, cfg.Paths.ChunksCSV)
	orDefault(triplesOut, cfg.Paths.TriplesCSV)
	orDefault(failedOut, cfg.Paths.FailedCSV)
	if *workers > 0 {
		cfg.Extraction.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chunks, err := tables.ReadChunks(*in)
	if err != nil {
		appLogger.Fatal("Failed to read chunk table", zap.String("path", *in), zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient, err := llm.NewClient(cfg.LLM, llm.WithoutCircuitBreaker())
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	run := &models.ExtractionRun{
		ID:        uuid.New().String(),
		Source:    *in,
		Chunks:    len(chunks),
		StartedAt: time.Now(),
	}
	if err := sqliteClient.StartRun(run); err != nil {
		appLogger.Warn("Failed to record extraction run", zap.Error(err))
	}

	result := extraction.NewExtractor(llmClient, cfg.Extraction).Run(ctx, chunks)

	if err := tables.WriteRawTriples(*triplesOut, result.Triples); err != nil {
		appLogger.Fatal("Failed to write triples table", zap.Error(err))
	}
	if err := tables.WriteFailed(*failedOut, result.Failed); err != nil {
		appLogger.Fatal("Failed to write failed chunks table", zap.Error(err))
	}

	finished := time.Now()
	run.Triples = result.Summary.Triples
	run.FailedChunks = result.Summary.FailedChunks
	run.FinishedAt = &finished
	if err := sqliteClient.FinishRun(run, result.Failed); err != nil {
		appLogger.Warn("Failed to finish extraction run", zap.Error(err))
	}

	fmt.Printf("run %s: %d chunks, %d succeeded, %d triples, %d failed in %s\n",
		run.ID,
		result.Summary.Chunks,
		result.Summary.Succeeded,
		result.Summary.Triples,
		result.Summary.FailedChunks,
		result.Summary.Duration.Round(time.Millisecond),
	)
}

func orDefault(flagValue *string, def string) {
	if *flagValue == "" {
		*flagValue = def
	}
}
