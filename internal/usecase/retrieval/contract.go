package retrieval

import (
	"context"

	"github.com/kailas-cloud/naviq/internal/domain"
	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
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

// Repository defines the storage contract for similarity search.
type Repository interface {
	SearchKNN(ctx context.Context, collection string, vector []float32, pool, limit int) ([]domrec.Hit, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e domaudit.Entry) error
}
