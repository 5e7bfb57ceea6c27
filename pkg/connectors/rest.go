package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Conventional REST paths, tried in order.
var restListPaths = []string{"/tools", "/api/tools", "/mcp/tools", ""}
var restCallPatterns = []string{"/tools/%s", "/api/tools/%s", "/call"}

// tryREST probes base for the plain-REST style: conventional listing paths
// with POST first and GET retried on 405, accepting any response shape that
// normalizes to a tool array.
func tryREST(ctx context.Context, client *http.Client, baseURL, authHeader string) (*Session, []ToolInfo, error) {
	base := normalizeBase(baseURL)
	var lastErr error

	for _, path := range restListPaths {
		endpoint := base + path
		raw, err := restRequest(ctx, client, endpoint, authHeader, nil)
		if err != nil {
			lastErr = err
			continue
		}
		tools, err := normalizeToolListing(raw)
		if err != nil {
			lastErr = err
			continue
		}
		session := &Session{
			BaseURL:    base,
			Kind:       TransportREST,
			Endpoint:   endpoint,
			AuthHeader: authHeader,
		}
		return session, tools, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no listing path answered")
	}
	return nil, nil, lastErr
}

// callREST executes a tool over the REST style, walking the conventional
// call paths. All remaining patterns are tried before giving up; the shape
// of the just-probed listing endpoint says nothing about the call paths.
func callREST(ctx context.Context, client *http.Client, session *Session, name string, args map[string]interface{}) (string, error) {
	var lastErr error
	for _, pattern := range restCallPatterns {
		var endpoint string
		var payload interface{}
		if strings.Contains(pattern, "%s") {
			endpoint = session.BaseURL + fmt.Sprintf(pattern, url.PathEscape(name))
			payload = args
		} else {
			endpoint = session.BaseURL + pattern
			payload = map[string]interface{}{"name": name, "arguments": args}
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal tool arguments: %w", err)
		}
		raw, err := restRequest(ctx, client, endpoint, session.AuthHeader, body)
		if err != nil {
			lastErr = err
			continue
		}
		return extractResult(raw)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no call path answered")
	}
	return "", lastErr
}

// restRequest POSTs to endpoint, retrying as GET when the server answers 405.
func restRequest(ctx context.Context, client *http.Client, endpoint, authHeader string, body []byte) ([]byte, error) {
	raw, status, err := restDo(ctx, client, http.MethodPost, endpoint, authHeader, body)
	if err == nil {
		return raw, nil
	}
	if status == http.StatusMethodNotAllowed {
		raw, _, getErr := restDo(ctx, client, http.MethodGet, endpoint, authHeader, nil)
		if getErr == nil {
			return raw, nil
		}
		return nil, getErr
	}
	return nil, err
}

func restDo(ctx context.Context, client *http.Client, method, endpoint, authHeader string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("rest request failed: status=%d body=%s", resp.StatusCode, snippet(raw))
	}
	return raw, resp.StatusCode, nil
}

// normalizeToolListing accepts a wrapped {"tools": []}, an rpc-style
// {"result": {"tools": []}}, or a bare array.
func normalizeToolListing(raw []byte) ([]ToolInfo, error) {
	if tools, err := parseToolList(raw); err == nil {
		return tools, nil
	}

	var rpcShaped struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &rpcShaped); err == nil && len(rpcShaped.Result) > 0 {
		if tools, err := parseToolList(rpcShaped.Result); err == nil {
			return tools, nil
		}
	}
	return nil, fmt.Errorf("response does not normalize to a tool listing")
}
