package models

import "time"

// Chunk is one contiguous passage of a source document.
type Chunk struct {
	ChunkID string
	Header  string
	Text    string
	Name    string
}

// RawTriple is a triple as the extraction oracle produced it, tagged with its chunk.
type RawTriple struct {
	Subject   string
	Predicate string
	Object    string
	ChunkID   string
}

// FailedChunk records a chunk whose extraction did not yield a usable response.
// Response is empty when the oracle call itself failed.
type FailedChunk struct {
	ChunkID  string
	Error    string
	Response string
}

type NormalizedTriple struct {
	Subject     string
	Predicate   string
	Object      string
	SourceChunk string
}

type ExtractionRun struct {
	ID           string
	Source       string
	Chunks       int
	Triples      int
	FailedChunks int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

type QueryRecord struct {
	ID           string
	QueryText    string
	Route        string
	Response     string
	ChosenVote   int
	KGRowCount   int
	PassageCount int
	Cached       bool
	Error        string
	LatencyMS    int
	CreatedAt    time.Time
}

type EvaluationResult struct {
	ID               int
	RunID            string
	Query            string
	GroundTruth      string
	Answer           string
	ChosenVote       int
	CosineSimilarity float64
	Error            string
	CreatedAt        time.Time
}
