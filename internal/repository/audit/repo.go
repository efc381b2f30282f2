// Package audit appends pipeline audit entries to an append-only stream.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	domaudit "github.com/kailas-cloud/naviq/internal/domain/audit"
)

// store is the consumer interface for the audit sink (ISP).
type store interface {
	StreamAppend(ctx context.Context, key string, fields map[string]string) (string, error)
}

// Repo implements the pipelines' Auditor contract over a stream. Entries
// are only ever appended; there is no update or delete path.
type Repo struct {
	store  store
	prefix string
}

// New creates an audit repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Record appends one audit entry.
func (r *Repo) Record(ctx context.Context, e domaudit.Entry) error {
	key := r.prefix + "audit:" + e.Collection

	_, err := r.store.StreamAppend(ctx, key, map[string]string{
		"caller_id":    e.CallerID,
		"role":         e.Role,
		"collection":   e.Collection,
		"action":       string(e.Action),
		"input":        e.Input,
		"resolved":     e.Resolved,
		"outcome_size": strconv.Itoa(e.OutcomeSize),
		"ts":           e.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
