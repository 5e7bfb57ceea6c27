// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

// Package providers abstracts model inference as text in, text out. Tool
// requests ride inside the returned text and are interpreted upstream.
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/roomfleet/pkg/config"
)

type Turn struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

type CompletionRequest struct {
	SystemPrompt string
	Turns        []Turn
	Model        string
	MaxTokens    int
	Temperature  float64
}

type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// New builds a provider for the configured family. Every supported family
// speaks the chat-completions wire shape; the family mainly decides how the
// output text is parsed downstream.
func New(cfg config.ProviderConfig) (Provider, error) {
	family := strings.ToLower(strings.TrimSpace(cfg.Family))
	switch family {
	case "", "openai", "openrouter", "harmony", "gpt-oss", "openai-oss":
		return newChatCompletionsProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider family: %s", cfg.Family)
	}
}
