package provider

import (
	"fmt"

	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/internal/vector/milvus"
	"github.com/lexgraph/backend/internal/vector/qdrant"
	"github.com/lexgraph/backend/pkg/config"
)

// Open returns the vector store selected by cfg.Provider.
func Open(cfg config.VectorConfig) (vector.Store, error) {
	switch cfg.Provider {
	case "", "qdrant":
		return qdrant.NewClient(cfg.Qdrant, cfg.Dimension)
	case "milvus":
		return milvus.NewClient(cfg.Milvus, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.Provider)
	}
}
