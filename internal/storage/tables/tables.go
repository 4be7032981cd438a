// Package tables reads and writes the CSV artifacts that connect the pipeline stages.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexgraph/backend/internal/storage/models"
)

var (
	ChunkColumns      = []string{"chunk_id", "header", "text", "name"}
	RawTripleColumns  = []string{"subject", "predicate", "object", "chunk_id"}
	FailedColumns     = []string{"chunk_id", "error", "response"}
	NormalizedColumns = []string{"subject", "predicate", "object", "source_chunk"}
)

// naTokens are cells read back as missing values, the way dataframe tooling treats them.
var naTokens = map[string]struct{}{
	"":     {},
	"NaN":  {},
	"nan":  {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NULL": {},
	"null": {},
	"#N/A": {},
}

// Row is one untyped record; missing cells are nil.
type Row = map[string]any

func WriteChunks(path string, chunks []models.Chunk) error {
	records := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, []string{c.ChunkID, c.Header, c.Text, c.Name})
	}
	return write(path, ChunkColumns, records)
}

func WriteRawTriples(path string, triples []models.RawTriple) error {
	records := make([][]string, 0, len(triples))
	for _, t := range triples {
		records = append(records, []string{t.Subject, t.Predicate, t.Object, t.ChunkID})
	}
	return write(path, RawTripleColumns, records)
}

func WriteFailed(path string, failed []models.FailedChunk) error {
	records := make([][]string, 0, len(failed))
	for _, f := range failed {
		records = append(records, []string{f.ChunkID, f.Error, f.Response})
	}
	return write(path, FailedColumns, records)
}

func WriteNormalized(path string, triples []models.NormalizedTriple) error {
	records := make([][]string, 0, len(triples))
	for _, t := range triples {
		records = append(records, []string{t.Subject, t.Predicate, t.Object, t.SourceChunk})
	}
	return write(path, NormalizedColumns, records)
}

// ReadChunks loads a chunk table. Missing header or name cells become empty strings.
func ReadChunks(path string) ([]models.Chunk, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(rows))
	for i, row := range rows {
		id := str(row["chunk_id"])
		if id == "" {
			return nil, fmt.Errorf("failed to read chunk at row %d: missing chunk_id", i+1)
		}
		chunks = append(chunks, models.Chunk{
			ChunkID: id,
			Header:  str(row["header"]),
			Text:    str(row["text"]),
			Name:    str(row["name"]),
		})
	}
	return chunks, nil
}

// ReadNormalized loads a normalized triple table as written by WriteNormalized.
func ReadNormalized(path string) ([]models.NormalizedTriple, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}

	triples := make([]models.NormalizedTriple, 0, len(rows))
	for _, row := range rows {
		triples = append(triples, models.NormalizedTriple{
			Subject:     str(row["subject"]),
			Predicate:   str(row["predicate"]),
			Object:      str(row["object"]),
			SourceChunk: str(row["source_chunk"]),
		})
	}
	return triples, nil
}

// ReadRows reads a CSV file with a header line into untyped rows.
// Cells holding a missing-value token are stored as nil.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeRows(f)
}

func DecodeRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(record) {
				row[col] = nil
				continue
			}
			if _, na := naTokens[record[i]]; na {
				row[col] = nil
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func write(path string, header []string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
