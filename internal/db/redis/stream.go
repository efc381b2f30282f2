package redis

import (
	"context"

	"github.com/kailas-cloud/naviq/internal/db"
)

// StreamAppend appends an entry to a stream via XADD and returns the
// generated entry ID. Streams only grow; nothing in this store trims,
// rewrites, or deletes entries.
func (s *Store) StreamAppend(ctx context.Context, key string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(key).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}

	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}
