package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/retry"
)

const upsertBatchSize = 64

type Client struct {
	conn           *grpc.ClientConn
	collections    pb.CollectionsClient
	points         pb.PointsClient
	collectionName string
	apiKey         string
	vectorDim      int
}

var _ vector.Store = (*Client)(nil)

func NewClient(cfg config.QdrantConfig, vectorDim int) (*Client, error) {
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.Dial(cfg.Address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	logger.Info("Qdrant client initialized",
		zap.String("address", cfg.Address),
		zap.String("collection", cfg.CollectionName),
		zap.Int("dimension", vectorDim),
	)

	return &Client{
		conn:           conn,
		collections:    pb.NewCollectionsClient(conn),
		points:         pb.NewPointsClient(conn),
		collectionName: cfg.CollectionName,
		apiKey:         cfg.APIKey,
		vectorDim:      vectorDim,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) withAuth(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", c.apiKey)
}

func (c *Client) EnsureCollection(ctx context.Context) error {
	ctx = c.withAuth(ctx)

	list, err := c.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == c.collectionName {
			logger.Info("Collection already exists", zap.String("collection", c.collectionName))
			return nil
		}
	}

	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(c.vectorDim), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info("Collection created", zap.String("collection", c.collectionName))
	return nil
}

func (c *Client) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := vector.CheckDimensions(docs, c.vectorDim); err != nil {
		return err
	}

	wait := true
	for start := 0; start < len(docs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(docs))

		points := make([]*pb.PointStruct, 0, end-start)
		for _, d := range docs[start:end] {
			points = append(points, toPoint(d))
		}

		err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
			_, err := c.points.Upsert(c.withAuth(ctx), &pb.UpsertPoints{
				CollectionName: c.collectionName,
				Wait:           &wait,
				Points:         points,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	logger.Info("Chunks upserted into qdrant", zap.Int("count", len(docs)))
	return nil
}

func (c *Client) Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error) {
	resp, err := c.points.Search(c.withAuth(ctx), &pb.SearchPoints{
		CollectionName: c.collectionName,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search qdrant: %w", err)
	}

	hits := make([]vector.Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, fromScoredPoint(p))
	}

	logger.Debug("Vector search completed", zap.Int("topK", topK), zap.Int("results", len(hits)))
	return hits, nil
}

// PointID maps a chunk id onto the UUID qdrant requires. Hex chunk ids parse directly;
// anything else gets a stable name-based UUID.
func PointID(chunkID string) string {
	if id, err := uuid.Parse(chunkID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func toPoint(d vector.Document) *pb.PointStruct {
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(d.ChunkID)}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Embedding}}},
		Payload: map[string]*pb.Value{
			"chunk_id": stringValue(d.ChunkID),
			"name":     stringValue(d.Name),
			"header":   stringValue(d.Header),
			"text":     stringValue(d.Text),
		},
	}
}

func fromScoredPoint(p *pb.ScoredPoint) vector.Hit {
	payload := p.GetPayload()
	return vector.Hit{
		ChunkID: payload["chunk_id"].GetStringValue(),
		Name:    payload["name"].GetStringValue(),
		Header:  payload["header"].GetStringValue(),
		Text:    payload["text"].GetStringValue(),
		Score:   p.GetScore(),
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
