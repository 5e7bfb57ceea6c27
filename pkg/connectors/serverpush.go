package connectors

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// tryServerPush probes base for the server-push style: a long-lived GET with
// an event-stream accept header, read until the server announces an endpoint
// URL, then tools/list POSTed to that endpoint. A session id may ride in the
// announced endpoint's query string or a stream event.
func tryServerPush(ctx context.Context, client *http.Client, baseURL, authHeader string) (*Session, []ToolInfo, error) {
	base := normalizeBase(baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("push stream rejected: status=%d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return nil, nil, fmt.Errorf("push stream has content type %q", resp.Header.Get("Content-Type"))
	}

	endpoint, sessionID, err := readEndpointAnnouncement(ctx, resp)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := resolveEndpoint(base, endpoint)
	if err != nil {
		return nil, nil, err
	}
	if sessionID == "" {
		sessionID = sessionIDFromEndpoint(resolved)
	}

	session := &Session{
		BaseURL:    base,
		Kind:       TransportServerPush,
		Endpoint:   resolved,
		AuthHeader: authHeader,
	}
	session.setSessionID(sessionID)

	raw, err := rpcCall(ctx, client, session, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, nil, fmt.Errorf("tools/list via announced endpoint: %w", err)
	}
	tools, err := parseToolList(raw)
	if err != nil {
		return nil, nil, err
	}
	return session, tools, nil
}

func callServerPush(ctx context.Context, client *http.Client, session *Session, name string, args map[string]interface{}) (string, error) {
	return callStreamRPC(ctx, client, session, name, args)
}

// readEndpointAnnouncement consumes stream events until one named "endpoint"
// (or whose data looks like a URL path) arrives.
func readEndpointAnnouncement(ctx context.Context, resp *http.Response) (endpoint, sessionID string, err error) {
	type announcement struct {
		endpoint  string
		sessionID string
		err       error
	}
	done := make(chan announcement, 1)

	go func() {
		var eventName string
		var sid string
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if value, ok := strings.CutPrefix(line, "event:"); ok {
				eventName = strings.TrimSpace(value)
				continue
			}
			value, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data := strings.TrimSpace(value)
			switch {
			case eventName == "endpoint" || strings.HasPrefix(data, "/") || strings.HasPrefix(data, "http"):
				done <- announcement{endpoint: data, sessionID: sid}
				return
			case eventName == "session":
				sid = data
			}
		}
		scanErr := scanner.Err()
		if scanErr == nil {
			scanErr = fmt.Errorf("stream closed before endpoint announcement")
		}
		done <- announcement{err: scanErr}
	}()

	select {
	case <-ctx.Done():
		// Closing the body unblocks the scanner goroutine.
		resp.Body.Close()
		<-done
		return "", "", ctx.Err()
	case out := <-done:
		return out.endpoint, out.sessionID, out.err
	}
}

func resolveEndpoint(base, endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("empty endpoint announcement")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse announced endpoint: %w", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func sessionIDFromEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	for _, key := range []string{"sessionId", "session_id", "session"} {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return value
		}
	}
	return ""
}
