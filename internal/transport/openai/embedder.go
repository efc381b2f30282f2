package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/metrics"
)

const endpointEmbedding = "embedding"

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// Embedder talks to an OpenAI-compatible embedding endpoint. Every returned
// vector is validated against the configured dimensionality before it can
// reach a caller; a mismatch is discarded, never persisted.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder creates an embedding client.
func NewEmbedder(cfg *EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Embed returns the embedding vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	model := string(e.model)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpointEmbedding, model, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(endpointEmbedding, model, "api_error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpointEmbedding, model, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(endpointEmbedding, model, "empty_response").Inc()
		return nil, domain.NewUpstream(0, "empty embedding response")
	}

	vector := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vector) != e.dimensions {
		metrics.UpstreamErrorsTotal.WithLabelValues(endpointEmbedding, model, "dim_mismatch").Inc()
		return nil, fmt.Errorf(
			"got %d dimensions, want %d: %w",
			len(vector), e.dimensions, domain.ErrVectorDimMismatch,
		)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpointEmbedding, model, "success").Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(endpointEmbedding, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.UpstreamTokensTotal.WithLabelValues(endpointEmbedding, model, "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.UpstreamTokensTotal.WithLabelValues(endpointEmbedding, model, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return vector, nil
}
