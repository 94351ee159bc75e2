// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/config"
)

// ErrMissingAPIKey is returned when no inference credential is configured.
var ErrMissingAPIKey = errors.New("llmclient: API key is required (hint: set GEMINI_API_KEY)")

// GenerationOptions tune sampling for one request. Zero values fall back to
// the model configuration.
type GenerationOptions struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
	// ForceJSONFormat asks the service for an application/json response.
	ForceJSONFormat bool
}

// GenerationRequest is one prompt sent to the model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// Client produces text completions. The returned text is not guaranteed to
// be valid JSON even when JSON output was requested.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}

// NewClient creates the client for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		client, err := NewGeminiClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
