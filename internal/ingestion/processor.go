package ingestion

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
)

const (
	headerInstruction = "Return what law is this and nothing else"
	headerMaxTokens   = 200
	embedBatchSize    = 32
)

var supportedExtensions = map[string]bool{".pdf": true, ".html": true, ".htm": true}

type Processor struct {
	oracle      llm.Completer
	splitter    *Splitter
	headerChars int
}

func NewProcessor(oracle llm.Completer, cfg config.IngestionConfig) *Processor {
	return &Processor{
		oracle:      oracle,
		splitter:    NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		headerChars: cfg.HeaderChars,
	}
}

// ProcessDir ingests every supported file in dir, in name order. A file that cannot be
// read is logged and skipped.
func (p *Processor) ProcessDir(ctx context.Context, dir string) ([]models.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	var all []models.Chunk
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		chunks, err := p.ProcessFile(ctx, path)
		if err != nil {
			logger.Error("Failed to process document", zap.String("file", path), zap.Error(err))
			continue
		}
		all = append(all, chunks...)
	}

	logger.Info("Directory ingested",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int("chunks", len(all)),
	)
	return all, nil
}

func (p *Processor) ProcessFile(ctx context.Context, path string) ([]models.Chunk, error) {
	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := ExtractPDF(path)
		if err != nil {
			return nil, err
		}
		text = CleanPages(pages)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		raw, err := ExtractHTML(f)
		if err != nil {
			return nil, err
		}
		text = CleanPages([]string{raw})
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	if text == "" {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}

	return p.ProcessText(ctx, filepath.Base(path), text), nil
}

// ProcessText splits cleaned text into chunks that all carry the document name and header.
func (p *Processor) ProcessText(ctx context.Context, name, text string) []models.Chunk {
	header := p.Header(ctx, text)

	pieces := p.splitter.Split(text)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, models.Chunk{
			ChunkID: NewChunkID(),
			Header:  header,
			Text:    piece,
			Name:    name,
		})
	}

	metrics.DocumentsProcessed.Inc()
	logger.Info("Document chunked",
		zap.String("name", name),
		zap.String("header", header),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// Header asks the oracle which law the text is. Failures yield an empty header.
func (p *Processor) Header(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	resp, err := p.oracle.Complete(ctx, llm.CompletionRequest{
		UserPrompt: headerInstruction + ":\n\n" + truncateRunes(text, p.headerChars),
		Operation:  "header",
		MaxTokens:  headerMaxTokens,
	})
	if err != nil {
		logger.Warn("Header generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// NewChunkID returns a random 32-character hex id.
func NewChunkID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// EmbeddingText is the text a chunk is embedded and extracted from.
func EmbeddingText(c models.Chunk) string {
	return strings.TrimSpace(c.Header + " " + c.Text)
}

// Indexer embeds chunks and upserts them into a vector store.
type Indexer struct {
	embedder llm.Embedder
	store    vector.Store
}

func NewIndexer(embedder llm.Embedder, store vector.Store) *Indexer {
	return &Indexer{embedder: embedder, store: store}
}

func (ix *Indexer) Index(ctx context.Context, chunks []models.Chunk) error {
	if err := ix.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = EmbeddingText(c)
		}

		embeddings, err := ix.embedder.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(batch))
		}

		docs := make([]vector.Document, len(batch))
		for i, c := range batch {
			docs[i] = vector.Document{
				ChunkID:   c.ChunkID,
				Name:      c.Name,
				Header:    c.Header,
				Text:      c.Text,
				Embedding: embeddings[i],
			}
		}

		if err := ix.store.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
		logger.Debug("Indexed batch", zap.Int("from", start), zap.Int("to", end))
	}

	logger.Info("Chunks indexed", zap.Int("count", len(chunks)))
	return nil
}
