package provider

import (
	"fmt"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	openai_provider "github.com/mohammad-safakhou/researcher/provider/openai"
	"go.uber.org/zap"
)

// Client names a completion backend.
type Client string

const (
	OpenAI Client = "openai"
)

// NewCompleter builds the raw completion backend named by cfg.Provider. The
// result carries no retry; the orchestrator adds it.
func NewCompleter(cfg config.LLMConfig, sink openai_provider.TokenSink, logger *zap.Logger) (core.Completer, error) {
	switch Client(cfg.Provider) {
	case OpenAI, "":
		return openai_provider.NewClient(openai_provider.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Stream:      cfg.Stream,
			Sink:        sink,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
