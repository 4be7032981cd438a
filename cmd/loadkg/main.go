package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	cache "github.com/lexgraph/backend/internal/cache/redis"
	"github.com/lexgraph/backend/internal/kg/builder"
	"github.com/lexgraph/backend/internal/kg/neo4j"
	"github.com/lexgraph/backend/internal/storage/tables"
	"github.com/lexgraph/backend/pkg/config"
	appLogger "github.com/lexgraph/backend/pkg/logger"
)

func main() {
	in := flag.String("triples", "", "raw triples table path (defaults to paths.triplesCSV)")
	out := flag.String("normalized", "", "normalized table path (defaults to paths.normalizedCSV)")
	skipLoad := flag.Bool("skip-load", false, "only normalize, do not touch the graph")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging, "loadkg")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if *in == "" {
		*in = cfg.Paths.TriplesCSV
	}
	if *out == "" {
		*out = cfg.Paths.NormalizedCSV
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows, err := tables.ReadRows(*in)
	if err != nil {
		appLogger.Fatal("Failed to read triples table", zap.String("path", *in), zap.Error(err))
	}

	normalized := builder.Normalize(rows)
	if err := tables.WriteNormalized(*out, normalized.Triples); err != nil {
		appLogger.Fatal("Failed to write normalized table", zap.Error(err))
	}
	appLogger.Info("Triples normalized",
		zap.Int("kept", normalized.Kept),
		zap.Int("duplicates", normalized.Duplicates),
		zap.Int("invalid", normalized.Invalid),
		zap.String("path", *out),
	)

	if *skipLoad {
		return
	}

	neo4jClient, err := neo4j.NewClient(cfg.Neo4j)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	if err := neo4jClient.EnsureSchema(ctx); err != nil {
		appLogger.Fatal("Failed to ensure graph schema", zap.Error(err))
	}

	stats := builder.NewBuilder(neo4jClient).Load(ctx, normalized.Triples)

	if graph, err := neo4jClient.Stats(ctx); err != nil {
		appLogger.Warn("Failed to read graph stats", zap.Error(err))
	} else {
		appLogger.Info("Graph size",
			zap.Int64("entities", graph.Entities),
			zap.Int64("relations", graph.Relations),
		)
	}

	// Cached answers were built from the previous graph.
	if cfg.Cache.Enabled && stats.Upserted > 0 {
		if redisClient, err := cache.NewClient(cfg.Redis); err != nil {
			appLogger.Warn("Redis unavailable, cached answers kept", zap.Error(err))
		} else {
			n, err := redisClient.InvalidateAnswers(ctx)
			if err != nil {
				appLogger.Warn("Failed to invalidate cached answers", zap.Error(err))
			} else {
				appLogger.Info("Cached answers invalidated", zap.Int("keys", n))
			}
			redisClient.Close()
		}
	}

	fmt.Printf("normalized: %d kept, %d duplicates, %d invalid; loaded: %d upserted, %d failed\n",
		normalized.Kept, normalized.Duplicates, normalized.Invalid, stats.Upserted, stats.Failed)
}
