package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/retrieval"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/internal/synthesis"
	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/utils"
)

const (
	RouteRAG  = "rag"
	RouteNone = "none"

	NotRelevantMessage = "Your question is not relevant to law. Please provide a question relevant to law."
)

// Stages reported to a progress callback, in order.
const (
	StageRouting      = "routing"
	StageRetrieving   = "retrieving"
	StageSynthesizing = "synthesizing"
)

var ErrEmptyQuestion = errors.New("question is empty")

type GraphRetriever interface {
	Retrieve(ctx context.Context, question string) (*retrieval.GraphResult, error)
}

type PassageRetriever interface {
	Retrieve(ctx context.Context, question string) ([]vector.Hit, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question, contextBlock string) (*synthesis.Result, error)
}

type AnswerCache interface {
	GetAnswer(ctx context.Context, questionHash string, out any) (bool, error)
	SetAnswer(ctx context.Context, questionHash string, answer any, ttl time.Duration) error
}

type HistoryStore interface {
	InsertQueryRecord(record *models.QueryRecord) error
}

type Response struct {
	QueryID    string            `json:"query_id"`
	Question   string            `json:"question"`
	Route      string            `json:"route"`
	Answer     string            `json:"answer"`
	Cached     bool              `json:"cached"`
	ChosenVote int               `json:"chosen_vote,omitempty"`
	FollowUp   string            `json:"follow_up,omitempty"`
	Synthesis  *synthesis.Result `json:"synthesis,omitempty"`
	KGRows     int               `json:"kg_rows"`
	Passages   int               `json:"passages"`
	LatencyMS  int               `json:"latency_ms"`
}

// Evidence is what retrieval produced for one question.
type Evidence struct {
	Graph   *retrieval.GraphResult
	Hits    []vector.Hit
	Context string
}

type Agent struct {
	oracle    llm.Completer
	graph     GraphRetriever
	passages  PassageRetriever
	synth     Synthesizer
	cache     AnswerCache
	answerTTL time.Duration
	history   HistoryStore
}

type Option func(*Agent)

func WithCache(cache AnswerCache, ttl time.Duration) Option {
	return func(a *Agent) {
		a.cache = cache
		a.answerTTL = ttl
	}
}

func WithHistory(history HistoryStore) Option {
	return func(a *Agent) { a.history = history }
}

func New(oracle llm.Completer, graph GraphRetriever, passages PassageRetriever, synth Synthesizer, opts ...Option) *Agent {
	a := &Agent{
		oracle:   oracle,
		graph:    graph,
		passages: passages,
		synth:    synth,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Ask(ctx context.Context, question string) (*Response, error) {
	return a.AskWithProgress(ctx, question, nil)
}

// AskWithProgress answers question, calling progress (if non-nil) as each stage starts.
func (a *Agent) AskWithProgress(ctx context.Context, question string, progress func(stage string)) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if progress == nil {
		progress = func(string) {}
	}

	start := time.Now()
	resp := &Response{QueryID: uuid.New().String(), Question: question}
	key := utils.QuestionKey(question)

	logger.Info("Processing question", zap.String("query_id", resp.QueryID))

	if a.lookupCache(ctx, key, resp) {
		a.finish(resp, start, nil)
		return resp, nil
	}

	progress(StageRouting)
	resp.Route = a.Route(ctx, question)

	if resp.Route == RouteNone {
		resp.Answer = NotRelevantMessage
		a.finish(resp, start, nil)
		return resp, nil
	}

	progress(StageRetrieving)
	evidence := a.Gather(ctx, question)
	resp.Passages = len(evidence.Hits)
	if evidence.Graph != nil {
		resp.KGRows = len(evidence.Graph.Rows)
	}

	progress(StageSynthesizing)
	result, err := a.synth.Synthesize(ctx, question, evidence.Context)
	if err != nil {
		a.finish(resp, start, err)
		return nil, err
	}

	resp.Answer = result.Answer
	resp.ChosenVote = result.ChosenVote
	resp.FollowUp = result.FollowUp
	resp.Synthesis = result

	a.storeCache(ctx, key, resp)
	a.finish(resp, start, nil)
	return resp, nil
}

// Route asks the oracle whether the question needs retrieval. Anything but "none",
// including an oracle failure, routes to retrieval.
func (a *Agent) Route(ctx context.Context, question string) string {
	out, err := a.oracle.Complete(ctx, llm.CompletionRequest{
		UserPrompt: routerPrompt(question),
		Operation:  "router",
		MaxTokens:  5,
	})
	if err != nil {
		logger.Warn("Router failed, defaulting to retrieval", zap.Error(err))
		return RouteRAG
	}

	token := strings.ToLower(strings.Trim(strings.TrimSpace(out.Content), ".`'\" "))
	if token == RouteNone {
		return RouteNone
	}
	return RouteRAG
}

// Gather runs graph and passage retrieval. A failing source is logged and contributes
// nothing; synthesis still runs on whatever was found.
func (a *Agent) Gather(ctx context.Context, question string) *Evidence {
	ev := &Evidence{}

	graph, err := a.graph.Retrieve(ctx, question)
	if err != nil {
		metrics.RetrievalErrors.WithLabelValues("graph").Inc()
		logger.Warn("Graph retrieval failed", zap.Error(err))
	} else {
		ev.Graph = graph
	}

	hits, err := a.passages.Retrieve(ctx, question)
	if err != nil {
		metrics.RetrievalErrors.WithLabelValues("vector").Inc()
		logger.Warn("Vector retrieval failed", zap.Error(err))
	} else {
		ev.Hits = hits
	}

	var rows []map[string]any
	if ev.Graph != nil {
		rows = ev.Graph.Rows
	}
	ev.Context = retrieval.FormatContext(rows, ev.Hits)
	return ev
}

func (a *Agent) lookupCache(ctx context.Context, key string, resp *Response) bool {
	if a.cache == nil {
		return false
	}

	var cached Response
	ok, err := a.cache.GetAnswer(ctx, key, &cached)
	if err != nil {
		logger.Warn("Answer cache read failed", zap.Error(err))
		return false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("answer").Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues("answer").Inc()
	queryID := resp.QueryID
	*resp = cached
	resp.QueryID = queryID
	resp.Cached = true
	return true
}

func (a *Agent) storeCache(ctx context.Context, key string, resp *Response) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetAnswer(ctx, key, resp, a.answerTTL); err != nil {
		logger.Warn("Answer cache write failed", zap.Error(err))
	}
}

func (a *Agent) finish(resp *Response, start time.Time, failure error) {
	elapsed := time.Since(start)
	resp.LatencyMS = int(elapsed.Milliseconds())

	route := resp.Route
	if resp.Cached {
		route = "cache"
	}
	status := "success"
	if failure != nil {
		status = "error"
	}
	metrics.AgentDuration.WithLabelValues(route).Observe(elapsed.Seconds())
	metrics.AgentRequests.WithLabelValues(route, status).Inc()

	if a.history != nil {
		record := &models.QueryRecord{
			ID:           resp.QueryID,
			QueryText:    resp.Question,
			Route:        resp.Route,
			Response:     resp.Answer,
			ChosenVote:   resp.ChosenVote,
			KGRowCount:   resp.KGRows,
			PassageCount: resp.Passages,
			Cached:       resp.Cached,
			LatencyMS:    resp.LatencyMS,
			CreatedAt:    time.Now(),
		}
		if failure != nil {
			record.Error = failure.Error()
		}
		if err := a.history.InsertQueryRecord(record); err != nil {
			logger.Warn("Failed to record query", zap.String("query_id", resp.QueryID), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("query_id", resp.QueryID),
		zap.String("route", route),
		zap.Int("latency_ms", resp.LatencyMS),
	}
	if failure != nil {
		logger.Error("Question failed", append(fields, zap.Error(failure))...)
		return
	}
	logger.Info("Question answered", append(fields, zap.Int("chosen_vote", resp.ChosenVote))...)
}
