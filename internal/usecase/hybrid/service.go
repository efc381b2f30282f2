// Package hybrid races the structured and retrieval pipelines and picks a
// winner by confidence.
package hybrid

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/metrics"
	"github.com/kailas-cloud/naviq/internal/usecase/retrieval"
	"github.com/kailas-cloud/naviq/internal/usecase/structured"
)

// Source names the pipeline whose result was selected.
type Source string

// Selectable sources.
const (
	SourceStructured Source = "structured"
	SourceRetrieval  Source = "retrieval"
)

// Result carries the winning pipeline's outcome plus both branch results.
type Result struct {
	Source     Source
	Confidence float64
	Structured *structured.Result
	Retrieval  *retrieval.Result
}

// Service arbitrates between the two pipelines.
type Service struct {
	structured StructuredRunner
	retrieval  RetrievalRunner
	logger     *zap.Logger
}

// New creates an arbitration service.
func New(s StructuredRunner, r RetrievalRunner, logger *zap.Logger) *Service {
	return &Service{structured: s, retrieval: r, logger: logger}
}

// Run fans both pipelines out concurrently and waits for both. Either
// branch failing fails the whole run: a partial answer from one branch is
// never served when the other could not be scored against it. The
// structured result wins only on strictly greater confidence; ties go to
// retrieval.
func (s *Service) Run(
	ctx context.Context, collection, input string, caller domain.Caller,
) (Result, error) {
	var (
		sRes structured.Result
		rRes retrieval.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sRes, err = s.structured.Run(gctx, collection, input, caller)
		return err
	})
	g.Go(func() error {
		var err error
		rRes, err = s.retrieval.Run(gctx, collection, input, caller)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{
		Source:     SourceRetrieval,
		Confidence: rRes.Confidence,
		Structured: &sRes,
		Retrieval:  &rRes,
	}
	if sRes.Confidence > rRes.Confidence {
		result.Source = SourceStructured
		result.Confidence = sRes.Confidence
	}
	metrics.ArbitrationWinsTotal.WithLabelValues(string(result.Source)).Inc()

	s.logger.Debug("arbitration decided",
		zap.String("collection", collection),
		zap.String("winner", string(result.Source)),
		zap.Float64("structured_confidence", sRes.Confidence),
		zap.Float64("retrieval_confidence", rRes.Confidence),
	)

	return result, nil
}
