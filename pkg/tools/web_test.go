package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearchExtractsResults(t *testing.T) {
	page := `<html><body>
<a class="result__a" href="https://go.dev/doc/">Go Documentation</a>
<a class="result__snippet">The official docs.</a>
<a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
<a class="result__snippet">News from the team.</a>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang docs", r.URL.Query().Get("q"))
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	provider := &DuckDuckGoProvider{baseURL: server.URL}
	tool := NewWebSearchTool(provider, 5)

	result := tool.Execute(context.Background(), map[string]interface{}{"query": "golang docs"})
	require.False(t, result.IsError, result.ForLLM)
	assert.Contains(t, result.ForLLM, "Go Documentation")
	assert.Contains(t, result.ForLLM, "https://go.dev/doc/")
	assert.Contains(t, result.ForLLM, "The official docs.")
}

func TestWebSearchBareInputArgument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "weather berlin", r.URL.Query().Get("q"))
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	tool := NewWebSearchTool(&DuckDuckGoProvider{baseURL: server.URL}, 5)
	result := tool.Execute(context.Background(), map[string]interface{}{"input": "weather berlin"})
	require.False(t, result.IsError)
	assert.Contains(t, result.ForLLM, "No results found")
}

func TestWebSearchRequiresQuery(t *testing.T) {
	tool := NewWebSearchTool(NewDuckDuckGoProvider(), 5)
	result := tool.Execute(context.Background(), map[string]interface{}{})
	assert.True(t, result.IsError)
}

func TestRetrievalQueryFormatsHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "Bearer rk", r.Header.Get("Authorization"))
		var body struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "release notes", body.Query)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"text": "v2.0 shipped", "source": "changelog.md", "score": 0.91},
			},
		})
	}))
	defer server.Close()

	tool := NewRetrievalTool(server.URL, "rk", 5)
	result := tool.Execute(context.Background(), map[string]interface{}{"query": "release notes"})
	require.False(t, result.IsError, result.ForLLM)
	assert.Contains(t, result.ForLLM, "changelog.md")
	assert.Contains(t, result.ForLLM, "v2.0 shipped")
}

func TestRetrievalUnconfiguredBackend(t *testing.T) {
	tool := NewRetrievalTool("", "", 5)
	result := tool.Execute(context.Background(), map[string]interface{}{"query": "x"})
	assert.True(t, result.IsError)
}
