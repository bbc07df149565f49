// Package ai talks to the hosted generative model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stratagem-ai/internal/model"
)

const (
	ProviderGemini           = "gemini"
	ProviderOpenAICompatible = "openai_compatible"
)

var ErrAPIKeyMissing = errors.New("llm api key is missing")

// Client returns the raw reply text; interpreting it is the caller's job.
type Client interface {
	Chat(ctx context.Context, transcript []model.Message) (string, error)
	AnalyzeDocument(ctx context.Context, doc model.Attachment) (string, error)
}

type ChatConfig struct {
	Provider          string
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float32
	SystemInstruction string
}

func (c ChatConfig) instruction() string {
	if strings.TrimSpace(c.SystemInstruction) != "" {
		return c.SystemInstruction
	}
	return SystemInstruction
}

func NewClient(ctx context.Context, cfg ChatConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyMissing
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case ProviderOpenAICompatible:
		return NewOpenAICompatibleClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
