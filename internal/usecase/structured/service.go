// Package structured implements the structured-query pipeline: natural
// language in, a vetted filter executed against the store, records out.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
	"github.com/kailas-cloud/naviq/internal/metrics"
	"github.com/kailas-cloud/naviq/internal/prompt"
)

// safetyAccepted is the reason attached to results whose filter passed the
// operator allow-list.
const safetyAccepted = "filter uses only allow-listed operators"

// Result is the structured pipeline's outcome. Confidence is forced to 0
// whenever the record set is empty, regardless of the specificity score,
// biasing arbitration toward retrieval when the query finds nothing.
type Result struct {
	Confidence        float64
	Records           []domrec.Record
	ResolvedFilter    string
	SafetyReason      string
	SpecificityReason string
}

// Service runs the structured-query pipeline.
type Service struct {
	llm     Completer
	gate    Gate
	repo    Repository
	auditor Auditor
	schemas map[string]prompt.Schema
	logger  *zap.Logger
}

// New creates a structured-query pipeline service.
func New(
	llm Completer, gate Gate, repo Repository, auditor Auditor,
	schemas map[string]prompt.Schema, logger *zap.Logger,
) *Service {
	return &Service{
		llm:     llm,
		gate:    gate,
		repo:    repo,
		auditor: auditor,
		schemas: schemas,
		logger:  logger,
	}
}

type specificityReply struct {
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Run executes the pipeline stages in order: translate, safety-parse,
// optimize, specificity, authorize, execute, audit. Any stage failure
// aborts the run.
func (s *Service) Run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	start := time.Now()

	result, err := s.run(ctx, collection, input, caller)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues("structured", status).Inc()
	metrics.PipelineDuration.WithLabelValues("structured").Observe(time.Since(start).Seconds())

	return result, err
}

func (s *Service) run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	schema, ok := s.schemas[collection]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", collection, domain.ErrUnknownCollection)
	}

	// Translate. The model is untrusted input: its output only enters the
	// system through the strict parser below.
	raw, err := s.llm.Complete(ctx, prompt.TranslateFilter(schema), input, true)
	if err != nil {
		return Result{}, fmt.Errorf("translate: %w", err)
	}

	// Safety: parse into the closed condition set and check the schema.
	f, err := query.ParseFilter([]byte(raw), schema.NameFields)
	if err != nil {
		return Result{}, fmt.Errorf("safety check: %w", err)
	}
	if err := query.ValidateFields(f, schema.TagFields, schema.NumericFields); err != nil {
		return Result{}, fmt.Errorf("safety check: %w", err)
	}

	f, err = s.optimize(ctx, schema, f, raw)
	if err != nil {
		return Result{}, fmt.Errorf("optimize: %w", err)
	}

	// Specificity judges the original input text, never the filter.
	spRaw, err := s.llm.Complete(ctx, prompt.Specificity(), input, true)
	if err != nil {
		return Result{}, fmt.Errorf("specificity: %w", err)
	}
	var sp specificityReply
	if err := json.Unmarshal([]byte(spRaw), &sp); err != nil {
		return Result{}, fmt.Errorf("specificity: %w: %w", domain.ErrMalformedOutput, err)
	}
	sp.Confidence = clamp01(sp.Confidence)

	if err := s.gate.Authorize(ctx, caller, collection); err != nil {
		return Result{}, err
	}

	records, err := s.repo.Find(ctx, collection, f)
	if err != nil {
		return Result{}, fmt.Errorf("execute: %w", err)
	}

	entry, err := domaudit.New(
		caller.ID, caller.Role, collection,
		domaudit.ActionQuery, input, f.String(), len(records),
	)
	if err != nil {
		return Result{}, fmt.Errorf("audit: %w", err)
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("audit: %w", err)
	}

	confidence := sp.Confidence
	if len(records) == 0 {
		confidence = 0
	}

	s.logger.Debug("structured pipeline done",
		zap.String("collection", collection),
		zap.String("filter", f.String()),
		zap.Int("records", len(records)),
		zap.Float64("confidence", confidence),
	)

	return Result{
		Confidence:        confidence,
		Records:           records,
		ResolvedFilter:    f.String(),
		SafetyReason:      safetyAccepted,
		SpecificityReason: sp.Reason,
	}, nil
}

// optimize asks the model for an index-friendlier rendering of the filter.
// The optimizer is advisory: output that fails the strict re-parse or
// re-validation is discarded and the already-vetted filter passes through
// unchanged. An upstream failure still aborts the pipeline.
func (s *Service) optimize(
	ctx context.Context, schema prompt.Schema, f query.Filter, rawFilter string,
) (query.Filter, error) {
	optRaw, err := s.llm.Complete(ctx, prompt.Optimize(schema), rawFilter, true)
	if err != nil {
		return query.Filter{}, err
	}

	optimized, err := query.ParseFilter([]byte(optRaw), schema.NameFields)
	if err != nil {
		s.logger.Warn("optimizer output rejected, keeping original filter", zap.Error(err))
		return f, nil
	}
	if err := query.ValidateFields(optimized, schema.TagFields, schema.NumericFields); err != nil {
		s.logger.Warn("optimizer output rejected, keeping original filter", zap.Error(err))
		return f, nil
	}
	return optimized, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
