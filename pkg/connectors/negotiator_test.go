package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, r.Method+" "+r.URL.Path)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.entries...)
}

func writeRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func sampleTools() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        "echo",
			"description": "echoes input",
			"inputSchema": map[string]interface{}{"type": "object"},
		},
	}
}

func newStreamRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "rpc only", http.StatusMethodNotAllowed)
			return
		}
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "initialize":
			w.Header().Set("Mcp-Session-Id", "sess-7")
			writeRPCResult(w, req.ID, map[string]interface{}{"protocolVersion": rpcProtocolVersion})
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/list":
			assert.Equal(t, "sess-7", r.Header.Get("Mcp-Session-Id"))
			writeRPCResult(w, req.ID, map[string]interface{}{"tools": sampleTools()})
		case "tools/call":
			writeRPCResult(w, req.ID, map[string]interface{}{
				"content": []map[string]interface{}{
					{"type": "text", "text": "echo: hi"},
				},
			})
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}))
}

func TestNegotiateStreamingRPC(t *testing.T) {
	server := newStreamRPCServer(t)
	defer server.Close()

	n := NewNegotiator()
	session, tools, err := n.Negotiate(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, TransportStreamingRPC, session.Kind)
	assert.Equal(t, "sess-7", session.SessionID())
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := n.CallTool(context.Background(), server.URL, "", "echo", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", result)
}

func TestStreamingRPCAcceptsEventStreamReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result interface{}
		switch req.Method {
		case "initialize":
			result = map[string]interface{}{"protocolVersion": rpcProtocolVersion}
		case "tools/list":
			result = map[string]interface{}{"tools": sampleTools()}
		default:
			w.WriteHeader(http.StatusAccepted)
			return
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
	}))
	defer server.Close()

	n := NewNegotiator()
	session, tools, err := n.Negotiate(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, TransportStreamingRPC, session.Kind)
	require.Len(t, tools, 1)
}

func TestNegotiateServerPush(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			// Streaming-RPC probe lands here first and must fail.
			http.Error(w, "no rpc here", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: endpoint\ndata: /messages?sessionId=abc123\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("sessionId"))
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "tools/list":
			writeRPCResult(w, req.ID, map[string]interface{}{"tools": sampleTools()})
		case "tools/call":
			writeRPCResult(w, req.ID, "plain result string")
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	})

	n := NewNegotiator()
	session, tools, err := n.Negotiate(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, TransportServerPush, session.Kind)
	assert.Equal(t, "abc123", session.SessionID())
	require.Len(t, tools, 1)

	result, err := n.CallTool(context.Background(), server.URL, "", "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain result string", result)
}

func TestNegotiateFallsBackToREST(t *testing.T) {
	log := &requestLog{}
	mux := http.NewServeMux()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, "listing is read-only", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"tools": sampleTools()})
	})

	n := NewNegotiator()
	session, tools, err := n.Negotiate(context.Background(), server.URL, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, TransportREST, session.Kind)
	require.Len(t, tools, 1)

	// Probe order: rpc initialize POST, push-stream GET, then REST listing
	// with POST retried as GET on 405.
	entries := log.all()
	require.GreaterOrEqual(t, len(entries), 4)
	assert.Equal(t, "POST /", entries[0])
	assert.Equal(t, "GET /", entries[1])
	assert.Equal(t, "POST /tools", entries[2])
	assert.Equal(t, "GET /tools", entries[3])

	// Cached session is reused without renegotiating from scratch.
	_, _, err = n.Negotiate(context.Background(), server.URL, "Bearer tok")
	require.NoError(t, err)
	for _, entry := range log.all()[4:] {
		assert.NotEqual(t, "POST /", entry)
	}
}

func TestRESTCallTriesRemainingPatterns(t *testing.T) {
	log := &requestLog{}
	mux := http.NewServeMux()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"tools": sampleTools()})
	})
	mux.HandleFunc("/tools/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no per-tool path", http.StatusNotFound)
	})
	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "echo", body.Name)
		json.NewEncoder(w).Encode(map[string]interface{}{"output": "from /call"})
	})

	n := NewNegotiator()
	result, err := n.CallTool(context.Background(), server.URL, "", "echo", map[string]interface{}{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "from /call", result)

	entries := log.all()
	assert.Contains(t, entries, "POST /tools/echo")
	assert.Contains(t, entries, "POST /api/tools/echo")
	assert.Contains(t, entries, "POST /call")
}

func TestConcurrentCallsShareOneSession(t *testing.T) {
	// Servers may rotate the session id on any reply; concurrent workers on
	// the same cached session must not trip over the id handoff.
	var stamp int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Mcp-Session-Id", fmt.Sprintf("sess-%d", atomic.AddInt64(&stamp, 1)))
		switch req.Method {
		case "initialize":
			writeRPCResult(w, req.ID, map[string]interface{}{"protocolVersion": rpcProtocolVersion})
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/list":
			writeRPCResult(w, req.ID, map[string]interface{}{"tools": sampleTools()})
		case "tools/call":
			writeRPCResult(w, req.ID, map[string]interface{}{
				"content": []map[string]interface{}{{"type": "text", "text": "ok"}},
			})
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	n := NewNegotiator()
	_, _, err := n.Negotiate(context.Background(), server.URL, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := n.CallTool(context.Background(), server.URL, "", "echo", nil)
			if err != nil {
				errs <- err
				return
			}
			if result != "ok" {
				errs <- fmt.Errorf("unexpected result %q", result)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call: %v", err)
	}
	session, cached := n.cache.Get(server.URL)
	require.True(t, cached)
	assert.NotEmpty(t, session.SessionID())
}

func TestCallToolRenegotiatesAfterFailure(t *testing.T) {
	healthy := true
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"tools": sampleTools()})
	})
	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "temporarily broken", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": "ok"})
	})
	mux.HandleFunc("/tools/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	n := NewNegotiator()

	healthy = false
	_, err := n.CallTool(context.Background(), server.URL, "", "echo", nil)
	require.Error(t, err)
	_, cached := n.cache.Get(server.URL)
	assert.False(t, cached, "failed call must evict the session")

	healthy = true
	result, err := n.CallTool(context.Background(), server.URL, "", "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestExtractResultPreferenceOrder(t *testing.T) {
	// result.content[] wins over everything.
	out, err := extractResult([]byte(`{"result":{"content":[{"type":"text","text":"a"}]},"content":[{"text":"b"}],"output":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	// Bare result next.
	out, err = extractResult([]byte(`{"result":"r","content":[{"text":"b"}],"output":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "r", out)

	// Then content.
	out, err = extractResult([]byte(`{"content":[{"text":"b"}],"output":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "b", out)

	// Then output.
	out, err = extractResult([]byte(`{"output":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "c", out)
}
