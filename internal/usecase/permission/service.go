// Package permission implements the gate every pipeline passes before it
// touches a collection.
package permission

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/naviq/internal/domain"
)

// Service answers whether a caller may access a collection.
type Service struct {
	repo Repository
}

// New creates a permission gate.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authorize returns ErrAccessDenied if the caller's role may not access the
// collection. A missing permission record denies; only lookup failures
// surface as other errors.
func (s *Service) Authorize(ctx context.Context, caller domain.Caller, collection string) error {
	ok, err := s.repo.Allowed(ctx, caller.Role, collection)
	if err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}
	if !ok {
		return fmt.Errorf(
			"role %q may not access collection %q: %w",
			caller.Role, collection, domain.ErrAccessDenied,
		)
	}
	return nil
}
