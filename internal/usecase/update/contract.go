package update

import (
	"context"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
	"github.com/kailas-cloud/naviq/internal/domain/query"
	domrec "github.com/kailas-cloud/naviq/internal/domain/record"
)

// Completer sends an instruction plus input to the completion endpoint.
type Completer interface {
	Complete(ctx context.Context, instruction, input string, structured bool) (string, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gate checks collection access before execution.
type Gate interface {
	Authorize(ctx context.Context, caller domain.Caller, collection string) error
}

// Repository defines the storage contract for mutations and embedding
// resync. Update marks every mutated record stale; FindStale and SetVector
// drive the resync loop that clears the markers.
type Repository interface {
	Update(ctx context.Context, collection string, f query.Filter, m query.Mutation) (int, error)
	FindStale(ctx context.Context, collection string, f query.Filter, limit int) ([]domrec.Record, error)
	SetVector(ctx context.Context, collection, id string, vector []float32) error
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e domaudit.Entry) error
}
