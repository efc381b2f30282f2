// Package backfill sweeps a collection for records whose embedding is
// marked stale and re-embeds them. Interrupted update resyncs leave such
// markers behind; the sweep makes the vector index converge.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain/query"
	"github.com/kailas-cloud/naviq/internal/metrics"
)

// Result reports one sweep.
type Result struct {
	ReEmbedded int
	Batches    int
}

// Service runs the stale-embedding sweep.
type Service struct {
	embedder  Embedder
	repo      Repository
	batchSize int
	logger    *zap.Logger
}

// New creates a backfill service.
func New(embedder Embedder, repo Repository, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{embedder: embedder, repo: repo, batchSize: batchSize, logger: logger}
}

// Run fetches stale records in batches and re-embeds them until the sweep
// drains. Each marker is cleared only after its vector is stored, so an
// aborted sweep resumes where it stopped.
func (s *Service) Run(ctx context.Context, collection string) (Result, error) {
	start := time.Now()
	var result Result

	for {
		stale, err := s.repo.FindStale(ctx, collection, query.Filter{}, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("find stale: %w", err)
		}
		if len(stale) == 0 {
			break
		}
		result.Batches++

		for _, rec := range stale {
			vector, err := s.embedder.Embed(ctx, rec.Summary())
			if err != nil {
				return result, fmt.Errorf("embed %s: %w", rec.ID(), err)
			}
			if err := s.repo.SetVector(ctx, collection, rec.ID(), vector); err != nil {
				return result, err
			}
			result.ReEmbedded++
			metrics.RecordsReembeddedTotal.Inc()
		}

		// A short batch means the sweep drained; skip the extra round trip.
		if len(stale) < s.batchSize {
			break
		}
	}

	s.logger.Info("backfill sweep done",
		zap.String("collection", collection),
		zap.Int("re_embedded", result.ReEmbedded),
		zap.Int("batches", result.Batches),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}
