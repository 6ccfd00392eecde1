package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Generator turns one prompt into one completion. Any returned error means
// the backend did not produce an answer.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

func NewGenerator(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Timeout), nil
	case "openai":
		return NewOpenAICompatibleClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) (*http.Client, time.Duration) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}, timeout
}
