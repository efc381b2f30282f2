// Package retrieval implements the similarity pipeline: embed the question,
// fetch nearest records, synthesize a grounded answer.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
	"github.com/kailas-cloud/naviq/internal/metrics"
	"github.com/kailas-cloud/naviq/internal/prompt"
)

// Result is the retrieval pipeline's outcome. Confidence is the similarity
// score of the closest hit, or 0 when nothing was found.
type Result struct {
	Confidence float64
	Answer     string
	Context    []domrec.Record
}

// Config tunes the candidate pool and returned page of the KNN search.
type Config struct {
	TopK          int
	CandidatePool int
}

// Service runs the retrieval pipeline.
type Service struct {
	llm      Completer
	embedder Embedder
	gate     Gate
	repo     Repository
	auditor  Auditor
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval pipeline service.
func New(
	llm Completer, embedder Embedder, gate Gate, repo Repository, auditor Auditor,
	cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		llm:      llm,
		embedder: embedder,
		gate:     gate,
		repo:     repo,
		auditor:  auditor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run authorizes the caller, embeds the question, searches the collection's
// vector index, and synthesizes an answer from the hits. No hits short-
// circuits to the canned no-information answer without a synthesis call.
func (s *Service) Run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	start := time.Now()

	result, err := s.run(ctx, collection, input, caller)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues("retrieval", status).Inc()
	metrics.PipelineDuration.WithLabelValues("retrieval").Observe(time.Since(start).Seconds())

	return result, err
}

func (s *Service) run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	if err := s.gate.Authorize(ctx, caller, collection); err != nil {
		return Result{}, err
	}

	vector, err := s.embedder.Embed(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.repo.SearchKNN(ctx, collection, vector, s.cfg.CandidatePool, s.cfg.TopK)
	if err != nil {
		return Result{}, fmt.Errorf("similarity search: %w", err)
	}

	if len(hits) == 0 {
		if err := s.audit(ctx, caller, collection, input, "knn: no hits", 0); err != nil {
			return Result{}, err
		}
		return Result{Confidence: 0, Answer: prompt.NoInformationAnswer}, nil
	}

	summaries := make([]string, 0, len(hits))
	records := make([]domrec.Record, 0, len(hits))
	for _, h := range hits {
		summaries = append(summaries, h.Record.Summary())
		records = append(records, h.Record)
	}

	answer, err := s.llm.Complete(ctx, prompt.Synthesize(summaries), input, false)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize: %w", err)
	}

	resolved := fmt.Sprintf("knn: %d hits, top score %.4f", len(hits), hits[0].Score)
	if err := s.audit(ctx, caller, collection, input, resolved, len(hits)); err != nil {
		return Result{}, err
	}

	s.logger.Debug("retrieval pipeline done",
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.Float64("top_score", hits[0].Score),
	)

	return Result{
		Confidence: hits[0].Score,
		Answer:     answer,
		Context:    records,
	}, nil
}

func (s *Service) audit(
	ctx context.Context, caller domain.Caller, collection, input, resolved string, size int,
) error {
	entry, err := domaudit.New(
		caller.ID, caller.Role, collection,
		domaudit.ActionRetrieval, input, resolved, size,
	)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}
