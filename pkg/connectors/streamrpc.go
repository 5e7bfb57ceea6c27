package connectors

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

const rpcProtocolVersion = "2025-06-18"

var rpcNextID int64

// tryStreamRPC probes base for the streaming-RPC style: initialize, then a
// notifications/initialized fire-and-forget, then tools/list, all POSTed to
// the base URL. Replies may be plain JSON or a single-event stream.
func tryStreamRPC(ctx context.Context, client *http.Client, baseURL, authHeader string) (*Session, []ToolInfo, error) {
	session := &Session{
		BaseURL:    normalizeBase(baseURL),
		Kind:       TransportStreamingRPC,
		Endpoint:   normalizeBase(baseURL),
		AuthHeader: authHeader,
	}

	initParams := map[string]interface{}{
		"protocolVersion": rpcProtocolVersion,
		"clientInfo": map[string]interface{}{
			"name":    "roomfleet",
			"version": "dev",
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	if _, err := rpcCall(ctx, client, session, "initialize", initParams); err != nil {
		return nil, nil, fmt.Errorf("initialize: %w", err)
	}

	_, _ = rpcNotify(ctx, client, session, "notifications/initialized")

	raw, err := rpcCall(ctx, client, session, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, nil, fmt.Errorf("tools/list: %w", err)
	}
	tools, err := parseToolList(raw)
	if err != nil {
		return nil, nil, err
	}
	return session, tools, nil
}

func callStreamRPC(ctx context.Context, client *http.Client, session *Session, name string, args map[string]interface{}) (string, error) {
	raw, err := rpcCall(ctx, client, session, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}
	wrapped, _ := json.Marshal(map[string]json.RawMessage{"result": raw})
	return extractResult(wrapped)
}

func rpcCall(ctx context.Context, client *http.Client, session *Session, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&rpcNextID, 1)
	body, _ := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})

	payload, headers, err := rpcPost(ctx, client, session, body)
	if err != nil {
		return nil, err
	}
	if sid := strings.TrimSpace(headers.Get("Mcp-Session-Id")); sid != "" {
		session.setSessionID(sid)
	}

	var resp rpcResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

func rpcNotify(ctx context.Context, client *http.Client, session *Session, method string) ([]byte, error) {
	body, _ := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  map[string]interface{}{},
	})
	payload, _, err := rpcPost(ctx, client, session, body)
	return payload, err
}

func rpcPost(ctx context.Context, client *http.Client, session *Session, body []byte) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if session.AuthHeader != "" {
		req.Header.Set("Authorization", session.AuthHeader)
	}
	if sid := session.SessionID(); sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("rpc post failed: status=%d body=%s", resp.StatusCode, snippet(raw))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") {
		payload, ok := lastEventData(raw)
		if !ok {
			return nil, nil, fmt.Errorf("streamed reply carried no data event")
		}
		return payload, resp.Header, nil
	}
	return raw, resp.Header, nil
}

// lastEventData returns the data payload of the final event in an event
// stream body.
func lastEventData(raw []byte) ([]byte, bool) {
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			last = []byte(strings.TrimSpace(value))
		}
	}
	if len(last) == 0 {
		return nil, false
	}
	return last, true
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
