package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// SearchProvider answers keyword queries with a small ranked result list.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) (string, error)
}

// DuckDuckGoProvider scrapes the HTML search endpoint.
type DuckDuckGoProvider struct {
	baseURL string
}

func NewDuckDuckGoProvider() *DuckDuckGoProvider {
	return &DuckDuckGoProvider{baseURL: "https://html.duckduckgo.com/html/"}
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, count int) (string, error) {
	searchURL := fmt.Sprintf("%s?q=%s", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	return extractSearchResults(string(body), count, query)
}

var (
	reResultLink    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	reResultSnippet = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	reHTMLTag       = regexp.MustCompile(`<[^>]+>`)
)

func extractSearchResults(html string, count int, query string) (string, error) {
	matches := reResultLink.FindAllStringSubmatch(html, count+5)
	if len(matches) == 0 {
		return fmt.Sprintf("No results found. Query: %s", query), nil
	}

	snippetMatches := reResultSnippet.FindAllStringSubmatch(html, count+5)

	var lines []string
	lines = append(lines, fmt.Sprintf("Results for: %s", query))

	maxItems := min(len(matches), count)
	for i := 0; i < maxItems; i++ {
		urlStr := matches[i][1]
		title := strings.TrimSpace(stripTags(matches[i][2]))

		// Redirect links carry the real target in a uddg query param.
		if strings.Contains(urlStr, "uddg=") {
			if u, err := url.QueryUnescape(urlStr); err == nil {
				if idx := strings.Index(u, "uddg="); idx != -1 {
					urlStr = u[idx+5:]
				}
			}
		}

		lines = append(lines, fmt.Sprintf("%d. %s\n   %s", i+1, title, urlStr))
		if i < len(snippetMatches) {
			snippet := strings.TrimSpace(stripTags(snippetMatches[i][1]))
			if snippet != "" {
				lines = append(lines, fmt.Sprintf("   %s", snippet))
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

func stripTags(content string) string {
	return reHTMLTag.ReplaceAllString(content, "")
}

// WebSearchTool exposes keyword web search to the model.
type WebSearchTool struct {
	provider   SearchProvider
	maxResults int
}

func NewWebSearchTool(provider SearchProvider, maxResults int) *WebSearchTool {
	if provider == nil {
		provider = NewDuckDuckGoProvider()
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{provider: provider, maxResults: maxResults}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results (1-10)",
				"minimum":     1.0,
				"maximum":     10.0,
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
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

	count := t.maxResults
	if c, ok := args["count"].(float64); ok && int(c) > 0 && int(c) <= 10 {
		count = int(c)
	}

	result, err := t.provider.Search(ctx, query, count)
	if err != nil {
		return ErrorResult(fmt.Sprintf("search failed: %v", err))
	}
	return TextResult(result)
}
