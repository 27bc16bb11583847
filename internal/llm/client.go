package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/neonvoidvibes/align/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn completion request.
type Request struct {
	System string
	Prompt string
	// JSON asks providers that support it to constrain output to a JSON value.
	JSON bool
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

const defaultTimeout = 60 * time.Second

// NewClient creates an LLM client based on the config provider setting.
// The returned client is wrapped in a circuit breaker.
func NewClient(cfg config.LLMConfig) (Client, error) {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	var c Client
	switch cfg.Provider {
	case "claude-cli":
		model := cfg.Model
		if model == "" {
			model = "haiku"
		}
		c = NewClaudeCLI(model, timeout)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" || model == "haiku" {
			model = "claude-haiku-4-5-20251001"
		}
		c = NewAnthropic(cfg.AnthropicKey, model, timeout)
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		c = NewOllama(url, model, timeout)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	return NewBreaker(cfg.Provider, c), nil
}
