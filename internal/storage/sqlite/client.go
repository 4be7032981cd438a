package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		chunks INTEGER NOT NULL DEFAULT 0,
		triples INTEGER NOT NULL DEFAULT 0,
		failed_chunks INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON extraction_runs(started_at);

	CREATE TABLE IF NOT EXISTS failed_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		error TEXT NOT NULL,
		response TEXT,
		FOREIGN KEY (run_id) REFERENCES extraction_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_chunks(run_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		route TEXT NOT NULL,
		response TEXT,
		chosen_vote INTEGER,
		kg_row_count INTEGER,
		passage_count INTEGER,
		cached INTEGER DEFAULT 0,
		error TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS evaluation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		query TEXT NOT NULL,
		ground_truth TEXT,
		answer TEXT,
		chosen_vote INTEGER,
		cosine_similarity REAL,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_eval_run ON evaluation_results(run_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) StartRun(run *models.ExtractionRun) error {
	query := `INSERT INTO extraction_runs (id, source, chunks, started_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, run.ID, run.Source, run.Chunks, run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert extraction run: %w", err)
	}

	logger.Debug("Extraction run started", zap.String("run_id", run.ID), zap.Int("chunks", run.Chunks))
	return nil
}

// FinishRun stores the run totals together with its failed chunks in one transaction.
func (c *Client) FinishRun(run *models.ExtractionRun, failed []models.FailedChunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	_, err = tx.Exec(
		`UPDATE extraction_runs SET triples = ?, failed_chunks = ?, finished_at = ? WHERE id = ?`,
		run.Triples,
		run.FailedChunks,
		finished.Unix(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update extraction run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO failed_chunks (run_id, chunk_id, error, response) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare failed chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range failed {
		if _, err := stmt.Exec(run.ID, f.ChunkID, f.Error, f.Response); err != nil {
			return fmt.Errorf("failed to insert failed chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit extraction run: %w", err)
	}

	logger.Info("Extraction run recorded",
		zap.String("run_id", run.ID),
		zap.Int("triples", run.Triples),
		zap.Int("failed_chunks", run.FailedChunks),
	)
	return nil
}

func (c *Client) GetRun(id string) (*models.ExtractionRun, error) {
	query := `SELECT id, source, chunks, triples, failed_chunks, started_at, finished_at FROM extraction_runs WHERE id = ?`

	var run models.ExtractionRun
	var startedAt int64
	var finishedAt sql.NullInt64

	err := c.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Source,
		&run.Chunks,
		&run.Triples,
		&run.FailedChunks,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}

	return &run, nil
}

func (c *Client) GetFailedChunks(runID string) ([]models.FailedChunk, error) {
	rows, err := c.db.Query(`SELECT chunk_id, error, response FROM failed_chunks WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed chunks: %w", err)
	}
	defer rows.Close()

	var failed []models.FailedChunk
	for rows.Next() {
		var f models.FailedChunk
		var response sql.NullString
		if err := rows.Scan(&f.ChunkID, &f.Error, &response); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.Response = response.String
		failed = append(failed, f)
	}

	return failed, rows.Err()
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, query_text, route, response, chosen_vote, kg_row_count,
			passage_count, cached, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if record.Cached {
		cached = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.QueryText,
		record.Route,
		record.Response,
		record.ChosenVote,
		record.KGRowCount,
		record.PassageCount,
		cached,
		record.Error,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("route", record.Route),
		zap.Int("chosen_vote", record.ChosenVote),
	)

	return nil
}

func (c *Client) GetQueryHistory(limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, query_text, route, response, chosen_vote, kg_row_count, passage_count,
			cached, error, latency_ms, created_at
		FROM query_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var response, errText sql.NullString
		var cached int
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.QueryText,
			&r.Route,
			&response,
			&r.ChosenVote,
			&r.KGRowCount,
			&r.PassageCount,
			&cached,
			&errText,
			&r.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Response = response.String
		r.Error = errText.String
		r.Cached = cached == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertEvaluationResult(result *models.EvaluationResult) error {
	query := `
		INSERT INTO evaluation_results (run_id, query, ground_truth, answer, chosen_vote,
			cosine_similarity, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		result.RunID,
		result.Query,
		result.GroundTruth,
		result.Answer,
		result.ChosenVote,
		result.CosineSimilarity,
		result.Error,
		result.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation result: %w", err)
	}

	return nil
}
