// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

// Package connectors turns a bare remote tool-server address into a working
// list-tools/call-tool capability, negotiating which of three transport
// styles the server speaks.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 2
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 250 * time.Millisecond
	}
	return policy
}

func withRetry(ctx context.Context, policy RetryPolicy, fn func(attempt int) error) error {
	policy = normalizeRetryPolicy(policy)
	var last error
	for i := 1; i <= policy.MaxAttempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := fn(i); err == nil {
			return nil
		} else {
			last = err
		}
		if i == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff):
		}
	}
	if last != nil {
		return last
	}
	return fmt.Errorf("operation failed without error details")
}

func parseToolList(raw json.RawMessage) ([]ToolInfo, error) {
	var wrapped struct {
		Tools []struct {
			Name         string                 `json:"name"`
			Description  string                 `json:"description"`
			InputSchema  map[string]interface{} `json:"inputSchema"`
			InputSchema2 map[string]interface{} `json:"input_schema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Tools) > 0 {
		out := make([]ToolInfo, 0, len(wrapped.Tools))
		for _, item := range wrapped.Tools {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				continue
			}
			schema := item.InputSchema
			if len(schema) == 0 {
				schema = item.InputSchema2
			}
			out = append(out, ToolInfo{
				Name:        name,
				Description: strings.TrimSpace(item.Description),
				InputSchema: schema,
			})
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	var bare []ToolInfo
	if err := json.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		out := bare[:0]
		for _, item := range bare {
			if strings.TrimSpace(item.Name) != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no tools found in listing response")
}

// extractResult pulls a text outcome from whatever envelope a transport
// returned. Preference order: result.content[] text items, then a bare
// result, then content, then output.
func extractResult(raw []byte) (string, error) {
	var envelope struct {
		Result  json.RawMessage `json:"result"`
		Content json.RawMessage `json:"content"`
		Output  json.RawMessage `json:"output"`
		Error   *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return "", fmt.Errorf("empty tool result")
		}
		return text, nil
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("tool call rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	if len(envelope.Result) > 0 {
		if text, ok := contentText(envelope.Result); ok {
			return text, nil
		}
		return rawAsText(envelope.Result), nil
	}
	if len(envelope.Content) > 0 {
		if text, ok := textItems(envelope.Content); ok {
			return text, nil
		}
		return rawAsText(envelope.Content), nil
	}
	if len(envelope.Output) > 0 {
		return rawAsText(envelope.Output), nil
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("empty tool result")
	}
	return text, nil
}

// contentText extracts joined text items from a result carrying a content
// array, MCP style.
func contentText(result json.RawMessage) (string, bool) {
	var parsed struct {
		Content json.RawMessage `json:"content"`
		IsError bool            `json:"isError"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil || len(parsed.Content) == 0 {
		return "", false
	}
	return textItems(parsed.Content)
}

func textItems(raw json.RawMessage) (string, bool) {
	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", false
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		typ, _ := item["type"].(string)
		if typ != "" && typ != "text" {
			continue
		}
		txt, _ := item["text"].(string)
		txt = strings.TrimSpace(txt)
		if txt != "" {
			parts = append(parts, txt)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func rawAsText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
