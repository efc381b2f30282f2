// Package update implements the mutation pipeline: natural language in, a
// vetted replace-value mutation applied to the store, embeddings resynced.
package update

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	"github.com/kailas-cloud/naviq/internal/metrics"
	"github.com/kailas-cloud/naviq/internal/prompt"
)

// Result is the update pipeline's outcome.
type Result struct {
	ModifiedCount   int
	ReEmbeddedCount int
	ResolvedFilter  string
	ResolvedChange  string
}

// Service runs the update pipeline.
type Service struct {
	llm      Completer
	embedder Embedder
	gate     Gate
	repo     Repository
	auditor  Auditor
	schemas  map[string]prompt.Schema
	logger   *zap.Logger
}

// New creates an update pipeline service.
func New(
	llm Completer, embedder Embedder, gate Gate, repo Repository, auditor Auditor,
	schemas map[string]prompt.Schema, logger *zap.Logger,
) *Service {
	return &Service{
		llm:      llm,
		embedder: embedder,
		gate:     gate,
		repo:     repo,
		auditor:  auditor,
		schemas:  schemas,
		logger:   logger,
	}
}

// Run authorizes the caller before any model call, translates the request
// into a filter/mutation pair, applies it, and re-embeds every mutated
// record. A failure mid-resync leaves stale markers in place; the backfill
// sweep picks the leftovers up later.
func (s *Service) Run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	start := time.Now()

	result, err := s.run(ctx, collection, input, caller)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues("update", status).Inc()
	metrics.PipelineDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())

	return result, err
}

func (s *Service) run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	schema, ok := s.schemas[collection]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", collection, domain.ErrUnknownCollection)
	}

	// Mutations authorize before any token is spent on translation.
	if err := s.gate.Authorize(ctx, caller, collection); err != nil {
		return Result{}, err
	}

	raw, err := s.llm.Complete(ctx, prompt.TranslateUpdate(schema), input, true)
	if err != nil {
		return Result{}, fmt.Errorf("translate: %w", err)
	}

	f, m, err := query.ParseUpdate([]byte(raw), schema.NameFields)
	if err != nil {
		return Result{}, fmt.Errorf("safety check: %w", err)
	}
	if err := s.safetyCheck(f, m, schema); err != nil {
		return Result{}, fmt.Errorf("safety check: %w", err)
	}

	modified, err := s.repo.Update(ctx, collection, f, m)
	if err != nil {
		return Result{}, fmt.Errorf("apply: %w", err)
	}

	reEmbedded, err := s.resync(ctx, collection, f)
	if err != nil {
		return Result{ModifiedCount: modified, ReEmbeddedCount: reEmbedded},
			fmt.Errorf("resync embeddings: %w", err)
	}

	resolved := f.String() + " => " + m.String()
	entry, err := domaudit.New(
		caller.ID, caller.Role, collection,
		domaudit.ActionUpdate, input, resolved, modified,
	)
	if err != nil {
		return Result{}, fmt.Errorf("audit: %w", err)
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("audit: %w", err)
	}

	s.logger.Info("update pipeline done",
		zap.String("collection", collection),
		zap.String("resolved", resolved),
		zap.Int("modified", modified),
		zap.Int("re_embedded", reEmbedded),
	)

	return Result{
		ModifiedCount:   modified,
		ReEmbeddedCount: reEmbedded,
		ResolvedFilter:  f.String(),
		ResolvedChange:  m.String(),
	}, nil
}

// safetyCheck enforces the mutation-specific rules on top of the strict
// parser: an unfiltered mutation never runs, whatever the assignment says,
// and both sides must fit the collection schema. An empty filter AND empty
// mutation is the translator's explicit refusal of an ambiguous request.
func (s *Service) safetyCheck(f query.Filter, m query.Mutation, schema prompt.Schema) error {
	if f.IsEmpty() && m.IsEmpty() {
		return domain.NewSecurityRejected("request too ambiguous to resolve into a specific change")
	}
	if f.IsEmpty() {
		return domain.NewSecurityRejected("empty filter would mutate the entire collection")
	}
	if m.IsEmpty() {
		return domain.NewSecurityRejected("mutation carries no assignments")
	}
	if err := query.ValidateFields(f, schema.TagFields, schema.NumericFields); err != nil {
		return err
	}
	return query.ValidateAssignments(m, schema.TagFields, schema.NumericFields)
}

// resync re-embeds every record the mutation left stale, one at a time,
// clearing each marker only after its vector is stored.
func (s *Service) resync(ctx context.Context, collection string, f query.Filter) (int, error) {
	stale, err := s.repo.FindStale(ctx, collection, f, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range stale {
		vector, err := s.embedder.Embed(ctx, rec.Summary())
		if err != nil {
			return count, fmt.Errorf("embed %s: %w", rec.ID(), err)
		}
		if err := s.repo.SetVector(ctx, collection, rec.ID(), vector); err != nil {
			return count, err
		}
		count++
		metrics.RecordsReembeddedTotal.Inc()
	}
	return count, nil
}
