package structured

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

// Gate checks collection access before execution.
type Gate interface {
	Authorize(ctx context.Context, caller domain.Caller, collection string) error
}

// Repository defines the storage contract for filtered reads.
type Repository interface {
	Find(ctx context.Context, collection string, f query.Filter) ([]domrec.Record, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e domaudit.Entry) error
}
