// Package retry wraps the upstream clients in a bounded exponential-backoff
// policy. Both wrapped calls are read-only against external services, so
// retries are idempotent by construction. Store operations are never retried.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/metrics"
)

// Completer is the chat-completion contract being decorated.
type Completer interface {
	Complete(ctx context.Context, instruction, input string, structured bool) (string, error)
}

// Embedder is the embedding contract being decorated.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds retry policy settings.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialInterval seeds the exponential backoff (default 500ms).
	InitialInterval time.Duration
	Logger          *zap.Logger
}

func (c *Config) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(c.MaxRetries)), ctx,
	)
}

// permanent reports whether an error must not be retried: a model that
// declined, a parse-level failure, or a violated vector invariant will not
// improve on a second identical call.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrContentBlocked) ||
		errors.Is(err, domain.ErrMalformedOutput) ||
		errors.Is(err, domain.ErrVectorDimMismatch)
}

// CompleterWithRetry decorates a Completer with the retry policy.
type CompleterWithRetry struct {
	inner  Completer
	cfg    Config
	logger *zap.Logger
}

// NewCompleter creates a retrying completion decorator.
func NewCompleter(inner Completer, cfg Config) *CompleterWithRetry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompleterWithRetry{inner: inner, cfg: cfg, logger: logger}
}

// Complete delegates with bounded exponential backoff.
func (c *CompleterWithRetry) Complete(
	ctx context.Context, instruction, input string, structured bool,
) (string, error) {
	var result string

	operation := func() error {
		var err error
		result, err = c.inner.Complete(ctx, instruction, input, structured)
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		metrics.UpstreamRetriesTotal.WithLabelValues("completion").Inc()
		c.logger.Warn("retrying completion call",
			zap.Error(err),
			zap.Duration("next_attempt_in", next),
		)
	}

	if err := backoff.RetryNotify(operation, c.cfg.backoff(ctx), notify); err != nil {
		return "", err
	}
	return result, nil
}

// EmbedderWithRetry decorates an Embedder with the retry policy.
type EmbedderWithRetry struct {
	inner  Embedder
	cfg    Config
	logger *zap.Logger
}

// NewEmbedder creates a retrying embedding decorator.
func NewEmbedder(inner Embedder, cfg Config) *EmbedderWithRetry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbedderWithRetry{inner: inner, cfg: cfg, logger: logger}
}

// Embed delegates with bounded exponential backoff.
func (e *EmbedderWithRetry) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32

	operation := func() error {
		var err error
		result, err = e.inner.Embed(ctx, text)
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		metrics.UpstreamRetriesTotal.WithLabelValues("embedding").Inc()
		e.logger.Warn("retrying embedding call",
			zap.Error(err),
			zap.Duration("next_attempt_in", next),
		)
	}

	if err := backoff.RetryNotify(operation, e.cfg.backoff(ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}
