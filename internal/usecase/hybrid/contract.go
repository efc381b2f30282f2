package hybrid

import (
	"context"

	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/usecase/retrieval"
	"github.com/kailas-cloud/naviq/internal/usecase/structured"
)

// StructuredRunner runs the structured-query pipeline.
type StructuredRunner interface {
	Run(ctx context.Context, collection, input string, caller domain.Caller) (structured.Result, error)
}

// RetrievalRunner runs the retrieval pipeline.
type RetrievalRunner interface {
	Run(ctx context.Context, collection, input string, caller domain.Caller) (retrieval.Result, error)
}
