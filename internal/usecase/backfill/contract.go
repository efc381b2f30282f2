package backfill

import (
	"context"

	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository defines the storage contract for the stale sweep.
type Repository interface {
	FindStale(ctx context.Context, collection string, f query.Filter, limit int) ([]domrec.Record, error)
	SetVector(ctx context.Context, collection, id string, vector []float32) error
}
