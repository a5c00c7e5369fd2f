// Package rag orchestrates the query side of the pipeline. It accepts a user
// question, embeds it, retrieves the most similar report chunks, assembles a
// grounded prompt, and calls the language model — falling back to a fixed
// answer when no usable evidence was retrieved.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/engine/semantic"
	"github.com/FinleyAI/finley-mvp/pkg/resilience"
)

// Fallback is the literal answer returned when retrieval produces no usable
// evidence. It is a normal result, never an error.
const Fallback = "Information not available."

// Embedder turns a question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector search over the stored report chunks.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]semantic.SearchResult, error)
}

// ChatModel is the language model that produces the final answer.
type ChatModel interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Recorder persists question/answer records for audit. Recording failures
// must never fail the query, so Record errors are logged, not returned.
type Recorder interface {
	Record(ctx context.Context, rec domain.QueryRecord) error
}

// Options configures the query pipeline.
type Options struct {
	// TopK is how many chunks to retrieve per question.
	TopK int
	// SearchTimeout bounds the vector-store call.
	SearchTimeout time.Duration
	// ModelTimeout bounds the language-model call, typically the slowest
	// step in the pipeline.
	ModelTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          4,
		SearchTimeout: 5 * time.Second,
		ModelTimeout:  60 * time.Second,
	}
}

// Service answers questions about ingested financial reports.
type Service struct {
	embed    Embedder
	search   Searcher
	model    ChatModel
	recorder Recorder
	breaker  *resilience.Breaker
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. recorder may be nil, in which case answers are not
// audited.
func New(embed Embedder, search Searcher, model ChatModel, recorder Recorder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultOptions().ModelTimeout
	}
	return &Service{
		embed:    embed,
		search:   search,
		model:    model,
		recorder: recorder,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Retrieve embeds the question and fetches the k most similar stored chunks.
// No retries: a transient embedding or store failure propagates.
func (s *Service) Retrieve(ctx context.Context, question string, k int) (domain.RetrievalResult, error) {
	vector, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	hits, err := s.search.Search(searchCtx, vector, k)
	if err != nil {
		return nil, err
	}

	result := make(domain.RetrievalResult, len(hits))
	for i, h := range hits {
		result[i] = domain.RetrievedChunk{
			Text:     h.Text,
			Score:    h.Score,
			Metadata: h.Metadata,
		}
	}
	return result, nil
}

// Ask runs the full query pipeline for one question.
//
// When every retrieved chunk is blank, or nothing was retrieved, the model is
// not called at all and the Fallback answer is returned with Grounded=false.
// A model failure surfaces as a generation error — it is never converted into
// the fallback answer, so callers can tell "no evidence" from "service down".
func (s *Service) Ask(ctx context.Context, question string) (domain.AnswerResult, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return domain.AnswerResult{}, err
	}

	s.logger.Info("ask start", "question_len", len(question))

	retrieved, err := s.Retrieve(ctx, question, s.opts.TopK)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.logger.Info("retrieval done", "hits", len(retrieved))

	if !hasEvidence(retrieved) {
		s.logger.Info("no usable evidence, answering with fallback")
		answer := domain.AnswerResult{Text: Fallback, Grounded: false}
		s.record(ctx, question, answer)
		return answer, nil
	}

	prompt := buildPrompt(retrieved, question)

	modelCtx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
	defer cancel()

	var reply string
	err = s.breaker.Call(modelCtx, func(ctx context.Context) error {
		var chatErr error
		reply, chatErr = s.model.Chat(ctx, prompt)
		return chatErr
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) {
			err = domain.GenerationError("model call", err)
		}
		return domain.AnswerResult{}, err
	}

	answer := domain.AnswerResult{Text: strings.TrimSpace(reply), Grounded: true}
	s.record(ctx, question, answer)
	return answer, nil
}

// record hands the finished answer to the recorder. Persistence failures are
// logged and swallowed so the caller still receives the answer. Nothing is
// recorded for a cancelled request.
func (s *Service) record(ctx context.Context, question string, answer domain.AnswerResult) {
	if s.recorder == nil || ctx.Err() != nil {
		return
	}
	rec := domain.QueryRecord{
		Timestamp: s.now(),
		Question:  question,
		Answer:    answer.Text,
		Grounded:  answer.Grounded,
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Warn("audit record failed, answer still returned", "error", err)
	}
}

// hasEvidence reports whether at least one retrieved chunk has non-blank text.
func hasEvidence(retrieved domain.RetrievalResult) bool {
	for _, c := range retrieved {
		if strings.TrimSpace(c.Text) != "" {
			return true
		}
	}
	return false
}
