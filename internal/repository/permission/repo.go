// Package permission reads role permission records. Records are managed by
// an external administrative process; this repository never writes them.
package permission

import (
	"context"
	"fmt"
)

// Wildcard grants a role access to every collection.
const Wildcard = "*"

// store is the consumer interface for permission lookups (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo implements usecase/permission.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a permission repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Allowed reports whether the role may access the collection. A missing
// permission record denies; a wildcard entry grants everything.
func (r *Repo) Allowed(ctx context.Context, role, collection string) (bool, error) {
	key := r.prefix + "perm:" + role

	grants, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load permissions for role %q: %w", role, err)
	}
	if len(grants) == 0 {
		// No record for the role at all: deny, not error.
		return false, nil
	}
	if _, ok := grants[Wildcard]; ok {
		return true, nil
	}
	_, ok := grants[collection]
	return ok, nil
}
