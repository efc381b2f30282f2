package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/naviq/internal/domain"
)

type flakyCompleter struct {
	failures int
	calls    int
	err      error
}

func (f *flakyCompleter) Complete(context.Context, string, string, bool) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return "", f.err
		}
		return "", domain.NewUpstream(503, "overloaded")
	}
	return "ok", nil
}

type flakyEmbedder struct {
	failures int
	calls    int
	err      error
}

func (f *flakyEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, domain.NewUpstream(503, "overloaded")
	}
	return []float32{0.1}, nil
}

func fastConfig(retries int) Config {
	return Config{MaxRetries: retries, InitialInterval: time.Millisecond}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	inner := &flakyCompleter{failures: 2}
	c := NewCompleter(inner, fastConfig(3))

	got, err := c.Complete(context.Background(), "instr", "input", false)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q", got)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	inner := &flakyCompleter{failures: 10}
	c := NewCompleter(inner, fastConfig(2))

	_, err := c.Complete(context.Background(), "instr", "input", false)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	// First attempt plus two retries.
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestCompleteDoesNotRetryPermanentErrors(t *testing.T) {
	for _, sentinel := range []error{
		domain.ErrContentBlocked,
		domain.ErrMalformedOutput,
	} {
		inner := &flakyCompleter{failures: 10, err: sentinel}
		c := NewCompleter(inner, fastConfig(5))

		_, err := c.Complete(context.Background(), "instr", "input", false)
		if !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want %v", err, sentinel)
		}
		if inner.calls != 1 {
			t.Errorf("%v: calls = %d, want no retries", sentinel, inner.calls)
		}
	}
}

func TestCompleteZeroRetries(t *testing.T) {
	inner := &flakyCompleter{failures: 1}
	c := NewCompleter(inner, fastConfig(0))

	if _, err := c.Complete(context.Background(), "instr", "input", false); err == nil {
		t.Error("single failure succeeded with retries disabled")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{failures: 1}
	e := NewEmbedder(inner, fastConfig(3))

	vec, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("vector = %v", vec)
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestEmbedDoesNotRetryDimMismatch(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: domain.ErrVectorDimMismatch}
	e := NewEmbedder(inner, fastConfig(5))

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("err = %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want no retries", inner.calls)
	}
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyCompleter{failures: 10}
	c := NewCompleter(inner, fastConfig(5))

	if _, err := c.Complete(ctx, "instr", "input", false); err == nil {
		t.Error("cancelled context still retried to success")
	}
}
