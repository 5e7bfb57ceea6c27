package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/logger"
)

const attemptTimeout = 12 * time.Second

// Negotiator resolves remote tool servers to working sessions, trying the
// streaming-RPC, server-push, and REST styles strictly in that order.
type Negotiator struct {
	httpClient *http.Client
	cache      *SessionCache
	timeout    time.Duration
	retry      RetryPolicy
}

func NewNegotiator() *Negotiator {
	return &Negotiator{
		// Per-attempt deadlines come from the context; the client itself
		// must not cut long-lived push streams short.
		httpClient: &http.Client{},
		cache:      NewSessionCache(),
		timeout:    attemptTimeout,
		retry:      RetryPolicy{MaxAttempts: 2, Backoff: 250 * time.Millisecond},
	}
}

type probe struct {
	kind TransportKind
	fn   func(ctx context.Context, client *http.Client, baseURL, authHeader string) (*Session, []ToolInfo, error)
}

// Negotiate resolves baseURL to a session plus its tool listing, reusing a
// cached session when one exists. Each transport probe runs under its own
// timeout so a hung style cannot block the next.
func (n *Negotiator) Negotiate(ctx context.Context, baseURL, authHeader string) (*Session, []ToolInfo, error) {
	baseURL = normalizeBase(baseURL)
	if baseURL == "" {
		return nil, nil, fmt.Errorf("remote tool server address is required")
	}

	if session, ok := n.cache.Get(baseURL); ok {
		tools, err := n.listTools(ctx, session)
		if err == nil {
			return session, tools, nil
		}
		logger.WarnCF("connectors", "cached session stale, renegotiating", map[string]interface{}{
			"base_url":  baseURL,
			"transport": string(session.Kind),
			"error":     err.Error(),
		})
		n.cache.Evict(baseURL)
	}

	probes := []probe{
		{TransportStreamingRPC, tryStreamRPC},
		{TransportServerPush, tryServerPush},
		{TransportREST, tryREST},
	}

	var errs []string
	for _, p := range probes {
		attemptCtx, cancel := context.WithTimeout(ctx, n.timeout)
		session, tools, err := p.fn(attemptCtx, n.httpClient, baseURL, authHeader)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.kind, err))
			continue
		}
		logger.InfoCF("connectors", "transport negotiated", map[string]interface{}{
			"base_url":  baseURL,
			"transport": string(session.Kind),
			"tools":     len(tools),
		})
		n.cache.Put(session)
		return session, tools, nil
	}

	return nil, nil, fmt.Errorf("no transport negotiated for %s: %s", baseURL, strings.Join(errs, "; "))
}

// ListTools returns the remote server's tool listing, negotiating first if
// needed.
func (n *Negotiator) ListTools(ctx context.Context, baseURL, authHeader string) ([]ToolInfo, error) {
	_, tools, err := n.Negotiate(ctx, baseURL, authHeader)
	return tools, err
}

// CallTool executes name on the remote server over its negotiated transport.
// Every failed attempt evicts the session, so the retry negotiates fresh
// before reporting the failure.
func (n *Negotiator) CallTool(ctx context.Context, baseURL, authHeader, name string, args map[string]interface{}) (string, error) {
	var result string
	err := withRetry(ctx, n.retry, func(attempt int) error {
		session, _, err := n.Negotiate(ctx, baseURL, authHeader)
		if err != nil {
			return err
		}
		out, callErr := n.callOnce(ctx, session, name, args)
		if callErr != nil {
			n.cache.Evict(session.BaseURL)
			logger.WarnCF("connectors", "tool call failed, session evicted", map[string]interface{}{
				"base_url": baseURL,
				"tool":     name,
				"attempt":  attempt,
				"error":    callErr.Error(),
			})
			return callErr
		}
		result = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	return result, nil
}

func (n *Negotiator) callOnce(ctx context.Context, session *Session, name string, args map[string]interface{}) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	switch session.Kind {
	case TransportStreamingRPC:
		return callStreamRPC(callCtx, n.httpClient, session, name, args)
	case TransportServerPush:
		return callServerPush(callCtx, n.httpClient, session, name, args)
	case TransportREST:
		return callREST(callCtx, n.httpClient, session, name, args)
	default:
		return "", fmt.Errorf("unknown transport kind %q", session.Kind)
	}
}

func (n *Negotiator) listTools(ctx context.Context, session *Session) ([]ToolInfo, error) {
	listCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	switch session.Kind {
	case TransportStreamingRPC, TransportServerPush:
		raw, err := rpcCall(listCtx, n.httpClient, session, "tools/list", map[string]interface{}{})
		if err != nil {
			return nil, err
		}
		return parseToolList(raw)
	case TransportREST:
		raw, err := restRequest(listCtx, n.httpClient, session.Endpoint, session.AuthHeader, nil)
		if err != nil {
			return nil, err
		}
		return normalizeToolListing(raw)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", session.Kind)
	}
}
