// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/config"
)

const defaultHTTPTimeout = 300 * time.Second

type chatCompletionsProvider struct {
	apiBase      string
	apiKey       string
	defaultModel string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
}

func newChatCompletionsProvider(cfg config.ProviderConfig) (*chatCompletionsProvider, error) {
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("provider API base not configured")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider API key not configured")
	}
	return &chatCompletionsProvider{
		apiBase:      apiBase,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		defaultModel: strings.TrimSpace(cfg.Model),
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (p *chatCompletionsProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("provider not initialized")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]Turn, 0, len(req.Turns)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, Turn{Role: "system", Text: req.SystemPrompt})
	}
	messages = append(messages, req.Turns...)

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		requestBody["max_tokens"] = maxTokens
	} else if p.maxTokens > 0 {
		requestBody["max_tokens"] = p.maxTokens
	}
	if req.Temperature > 0 {
		requestBody["temperature"] = req.Temperature
	} else if p.temperature > 0 {
		requestBody["temperature"] = p.temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := p.apiBase + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("completion request failed: status=%d error=%s", resp.StatusCode, extractAPIError(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response carried no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func extractAPIError(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return parsed.Error.Message
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snippet
}
