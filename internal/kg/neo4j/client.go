package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/circuitbreaker"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/retry"
)

const upsertTripleCypher = `
	MERGE (s:Entity {name: $subject})
	MERGE (o:Entity {name: $object})
	MERGE (s)-[r:RELATION {type: $predicate}]->(o)
	ON CREATE SET r.source_chunk = $source_chunk
`

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type GraphStats struct {
	Entities  int64
	Relations int64
}

func NewClient(cfg config.Neo4jConfig) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 50
			c.SocketConnectTimeout = timeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		Logger:           logger.Named("neo4j"),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      neo4j.IsRetryable,
		Logger:         logger.Named("neo4j"),
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", cfg.URI), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, mode neo4j.AccessMode, operation func(context.Context, neo4j.SessionWithContext) error) error {
	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			session := c.driver.NewSession(ctx, neo4j.SessionConfig{
				AccessMode:   mode,
				DatabaseName: c.database,
			})
			defer session.Close(ctx)
			return operation(ctx, session)
		})
	})
}

// EnsureSchema creates the lookup index on entity names.
func (c *Client) EnsureSchema(ctx context.Context) error {
	return c.executeWithRetry(ctx, neo4j.AccessModeWrite, func(ctx context.Context, session neo4j.SessionWithContext) error {
		res, err := session.Run(ctx, `CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)`, nil)
		if err != nil {
			return fmt.Errorf("failed to create entity index: %w", err)
		}
		_, err = res.Consume(ctx)
		return err
	})
}

// UpsertTriple merges both entities and the relation between them in one write transaction.
// The relation is keyed by (subject, object, predicate); source_chunk is only set on create.
func (c *Client) UpsertTriple(ctx context.Context, triple models.NormalizedTriple) error {
	err := c.executeWithRetry(ctx, neo4j.AccessModeWrite, func(ctx context.Context, session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, upsertTripleCypher, map[string]any{
				"subject":      triple.Subject,
				"object":       triple.Object,
				"predicate":    triple.Predicate,
				"source_chunk": triple.SourceChunk,
			})
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert triple: %w", err)
	}

	logger.Debug("Triple upserted in KG",
		zap.String("subject", triple.Subject),
		zap.String("predicate", triple.Predicate),
		zap.String("object", triple.Object),
	)
	return nil
}

// Query runs cypher in a read transaction and returns every record as a map.
// Nodes, relationships and paths are flattened to property maps without embeddings.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any

	err := c.executeWithRetry(ctx, neo4j.AccessModeRead, func(ctx context.Context, session neo4j.SessionWithContext) error {
		out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}

			var collected []map[string]any
			for result.Next(ctx) {
				record := result.Record()
				row := make(map[string]any, len(record.Keys))
				for i, key := range record.Keys {
					row[key] = Flatten(record.Values[i])
				}
				collected = append(collected, row)
			}
			if err := result.Err(); err != nil {
				return nil, fmt.Errorf("error iterating results: %w", err)
			}
			return collected, nil
		})
		if err != nil {
			return err
		}
		rows, _ = out.([]map[string]any)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run graph query: %w", err)
	}

	logger.Debug("KG query completed", zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) Stats(ctx context.Context) (*GraphStats, error) {
	entities, err := c.count(ctx, `MATCH (e:Entity) RETURN count(e) AS n`)
	if err != nil {
		return nil, err
	}
	relations, err := c.count(ctx, `MATCH (:Entity)-[r:RELATION]->(:Entity) RETURN count(r) AS n`)
	if err != nil {
		return nil, err
	}
	return &GraphStats{Entities: entities, Relations: relations}, nil
}

func (c *Client) count(ctx context.Context, cypher string) (int64, error) {
	rows, err := c.Query(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, _ := rows[0]["n"].(int64)
	return n, nil
}
