// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/layout-scout/internal/config"
)

// GeminiClient implements Client on the Google Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
	config config.LLMModelConfig

	// initialInterval is the first retry delay; tests shorten it.
	initialInterval time.Duration
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient initializes the client. cfg.Endpoint overrides the API
// base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, errors.New("llmclient: model name is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:          client,
		config:          cfg,
		logger:          logger.Named("llm_client.gemini"),
		initialInterval: backoff.DefaultInitialInterval,
	}, nil
}

// Generate sends the prompts to Gemini and returns the text of the first
// candidate. Transient API errors are retried within cfg.MaxRetryElapsed.
func (c *GeminiClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	genConfig := c.buildConfig(req)

	var responseText string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.classifyError(ctx, err)
		}

		if len(resp.Candidates) == 0 {
			return backoff.Permanent(errors.New("gemini API returned no candidates"))
		}
		candidate := resp.Candidates[0]
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			switch candidate.FinishReason {
			case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		fields := []zap.Field{
			zap.String("model", c.config.Model),
			zap.Duration("duration", duration),
			zap.String("finish_reason", string(candidate.FinishReason)),
		}
		if usage := resp.UsageMetadata; usage != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", usage.PromptTokenCount),
				zap.Int32("completion_tokens", usage.CandidatesTokenCount),
				zap.Int32("total_tokens", usage.TotalTokenCount),
			)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		responseText = resp.Text()
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return "", err
	}
	return responseText, nil
}

func (c *GeminiClient) newBackOff() backoff.BackOff {
	if c.config.MaxRetryElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = c.config.MaxRetryElapsed
	return b
}

func (c *GeminiClient) buildConfig(req GenerationRequest) *genai.GenerateContentConfig {
	opts := req.Options
	temperature := c.config.Temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	topP := c.config.TopP
	if opts.TopP != 0 {
		topP = opts.TopP
	}
	topK := c.config.TopK
	if opts.TopK != 0 {
		topK = opts.TopK
	}
	maxTokens := c.config.MaxTokens
	if opts.MaxOutputTokens != 0 {
		maxTokens = opts.MaxOutputTokens
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr(topP),
		TopK:            genai.Ptr(float32(topK)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if opts.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
	}
	return genConfig
}

// classifyError marks everything but rate limiting and server faults as
// permanent.
func (c *GeminiClient) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code := 0
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return fmt.Errorf("gemini request failed: %w", err)
	}

	c.logger.Error("Gemini API returned error status", zap.Int("status", code), zap.Error(err))
	wrapped := fmt.Errorf("gemini API error: %w", err)
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return wrapped
	default:
		return backoff.Permanent(wrapped)
	}
}

// Close releases client resources. The SDK client holds none beyond its
// HTTP client.
func (c *GeminiClient) Close() error { return nil }
