package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/domain"
	"github.com/kailas-cloud/naviq/internal/metrics"
)

const endpointCompletion = "completion"

// acknowledgement is the fixed assistant turn between instruction and input.
const acknowledgement = "Understood. Send the request."

// CompletionConfig holds the chat-completion provider settings.
type CompletionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// CompletionClient talks to an OpenAI-compatible chat-completion endpoint.
type CompletionClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewCompletionClient creates a chat-completion client.
func NewCompletionClient(cfg *CompletionConfig) *CompletionClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &CompletionClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Complete sends the three-turn exchange (instruction, acknowledgement,
// input) and returns the completion text. When structured is set the
// endpoint is asked for a JSON object; callers parse the returned text
// into their own shape.
func (c *CompletionClient) Complete(
	ctx context.Context, instruction, input string, structured bool,
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleAssistant, Content: acknowledgement},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	}
	if structured {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpointCompletion, c.model, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(endpointCompletion, c.model, "api_error").Inc()
		return "", parseAPIError(err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpointCompletion, c.model, "success").Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(endpointCompletion, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.UpstreamTokensTotal.WithLabelValues(endpointCompletion, c.model, "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.UpstreamTokensTotal.WithLabelValues(endpointCompletion, c.model, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUpstream(0, "completion response has no choices")
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		// The safety-block indicator surfaces distinctly from other
		// missing-content failures.
		if choice.FinishReason == openai.FinishReasonContentFilter {
			metrics.UpstreamErrorsTotal.WithLabelValues(endpointCompletion, c.model, "content_filter").Inc()
			return "", fmt.Errorf("completion refused: %w", domain.ErrContentBlocked)
		}
		return "", domain.NewUpstream(0, "completion response has no content")
	}

	return choice.Message.Content, nil
}

// parseAPIError maps provider errors onto the domain upstream error,
// preserving status and body for diagnostics.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewUpstream(reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewUpstream(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return domain.NewUpstream(0, err.Error())
}
