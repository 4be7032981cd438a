package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
)

// Candidate is one independent answer with its self-critique and vote.
type Candidate struct {
	ID       string `json:"id"`
	Answer   string `json:"answer"`
	Critique string `json:"critique"`
	Question string `json:"question,omitempty"`
	Vote     int    `json:"vote"`
}

type Result struct {
	Candidates   []Candidate `json:"candidates"`
	Conclusion   string      `json:"conclusion"`
	ChosenID     string      `json:"chosen_id"`
	ChosenAnswer string      `json:"chosen_answer"`
	ChosenVote   int         `json:"chosen_vote"`
	DeeperWider  string      `json:"deeper_wider"`
	// DeeperWiderNone distinguishes an explicit "None" from a missing deeper/wider field.
	DeeperWiderNone bool   `json:"deeper_wider_none"`
	Critique        string `json:"critique"`
	FollowUp        string `json:"follow_up,omitempty"`
	// Answer is DeeperWider when present, otherwise ChosenAnswer.
	Answer string `json:"answer"`
	// OracleChosenID is the oracle's own pick, kept for diagnostics only.
	OracleChosenID string `json:"oracle_chosen_id,omitempty"`
}

type Engine struct {
	oracle        llm.Completer
	minCandidates int
	maxTokens     int
}

func NewEngine(oracle llm.Completer, cfg config.SynthesisConfig) *Engine {
	minCandidates := cfg.MinCandidates
	if minCandidates <= 0 {
		minCandidates = 3
	}
	return &Engine{
		oracle:        oracle,
		minCandidates: minCandidates,
		maxTokens:     cfg.MaxTokens,
	}
}

// Synthesize makes exactly one oracle call. A response that does not match the
// critique document shape fails with ErrMalformedResponse; no answer is guessed.
func (e *Engine) Synthesize(ctx context.Context, question, contextBlock string) (*Result, error) {
	resp, err := e.oracle.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(question, contextBlock),
		Operation:    "synthesis",
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call synthesis oracle: %w", err)
	}

	doc, err := parseDocument(resp.Content, e.minCandidates)
	if err != nil {
		logger.Warn("Synthesis response rejected", zap.Error(err), zap.Int("response_length", len(resp.Content)))
		return nil, err
	}

	chosen := selectCandidate(doc.Candidates)

	result := &Result{
		Candidates:      doc.Candidates,
		Conclusion:      doc.Conclusion,
		ChosenID:        chosen.ID,
		ChosenAnswer:    chosen.Answer,
		ChosenVote:      chosen.Vote,
		DeeperWider:     doc.DeeperWider,
		DeeperWiderNone: doc.DeeperWiderNone,
		Critique:        doc.Critique,
		FollowUp:        doc.Question,
		OracleChosenID:  strings.TrimSpace(doc.Chosen),
	}

	if result.OracleChosenID != "" && result.OracleChosenID != chosen.ID {
		logger.Warn("Oracle chose a different candidate",
			zap.String("oracle_chosen", result.OracleChosenID),
			zap.String("selected", chosen.ID),
			zap.Int("selected_vote", chosen.Vote),
		)
	}

	result.Answer = chosen.Answer
	if result.DeeperWider != "" {
		result.Answer = result.DeeperWider
		metrics.DeeperWiderUsed.Inc()
	}

	metrics.ChosenVote.Observe(float64(chosen.Vote))
	logger.Info("Answer synthesized",
		zap.Int("candidates", len(doc.Candidates)),
		zap.String("chosen", chosen.ID),
		zap.Int("vote", chosen.Vote),
		zap.Bool("deeper_wider", result.DeeperWider != ""),
	)

	return result, nil
}

// selectCandidate returns the highest-voted candidate; on a tie the later one wins.
func selectCandidate(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Vote >= best.Vote {
			best = c
		}
	}
	return best
}
