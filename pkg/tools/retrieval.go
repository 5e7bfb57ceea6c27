package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RetrievalTool queries an external document-retrieval backend and returns a
// small ranked list of passages.
type RetrievalTool struct {
	apiBase    string
	apiToken   string
	maxResults int
	httpClient *http.Client
}

func NewRetrievalTool(apiBase, apiToken string, maxResults int) *RetrievalTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &RetrievalTool{
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		apiToken:   strings.TrimSpace(apiToken),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *RetrievalTool) Name() string {
	return "retrieval_query"
}

func (t *RetrievalTool) Description() string {
	return "Query the document store for relevant passages. Returns text, source, and score."
}

func (t *RetrievalTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to look for",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum passages to return",
			},
		},
		"required": []string{"query"},
	}
}

func (t *RetrievalTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	if t.apiBase == "" {
		return ErrorResult("retrieval backend not configured")
	}

	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		if raw, ok := args["input"].(string); ok {
			query = strings.TrimSpace(raw)
		}
	}
	if query == "" {
		return ErrorResult("query is required")
	}

	limit := intArg(args, "limit", t.maxResults)
	if limit > t.maxResults {
		limit = t.maxResults
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"query": query,
		"limit": limit,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiBase+"/query", bytes.NewReader(payload))
	if err != nil {
		return ErrorResult(fmt.Sprintf("create retrieval request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("retrieval request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ErrorResult(fmt.Sprintf("read retrieval response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ErrorResult(fmt.Sprintf("retrieval backend status=%d", resp.StatusCode))
	}

	var parsed struct {
		Results []struct {
			Text   string  `json:"text"`
			Source string  `json:"source"`
			Score  float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ErrorResult(fmt.Sprintf("decode retrieval response: %v", err))
	}
	if len(parsed.Results) == 0 {
		return TextResult("No passages found for: " + query)
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Passages for: %s", query))
	for i, hit := range parsed.Results {
		if i >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. [%.2f] %s\n   %s", i+1, hit.Score, hit.Source, strings.TrimSpace(hit.Text)))
	}
	return TextResult(strings.Join(lines, "\n"))
}
