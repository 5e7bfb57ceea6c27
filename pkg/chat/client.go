// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to the chat room's REST API on behalf of fleet agents.
type Client struct {
	apiBase    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(apiBase, apiToken string, timeoutSeconds int) (*Client, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("room API base not configured")
	}
	timeout := defaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &Client{
		apiBase:    apiBase,
		apiToken:   strings.TrimSpace(apiToken),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// RecentMessages returns the newest messages in the room, oldest first.
func (c *Client) RecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages?limit=%d", c.apiBase, url.PathEscape(roomID), limit)

	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}
	return out.Messages, nil
}

// MessagesAround returns messages surrounding messageID, oldest first, with
// the anchor message included.
func (c *Client) MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages/%s/context?before=%d&after=%d",
		c.apiBase, url.PathEscape(roomID), url.PathEscape(messageID), before, after)

	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch message context: %w", err)
	}
	return out.Messages, nil
}

// PostMessage publishes text to the room as the authenticated agent.
func (c *Client) PostMessage(ctx context.Context, roomID string, post PostRequest) (*Message, error) {
	if strings.TrimSpace(post.Text) == "" {
		return nil, fmt.Errorf("refusing to post empty message")
	}
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", c.apiBase, url.PathEscape(roomID))

	var out Message
	if err := c.doJSON(ctx, http.MethodPost, endpoint, post, &out); err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	return &out, nil
}

// AddReaction attaches an emoji reaction to a message. A conflict response
// means the reaction already exists and is treated as success.
func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) error {
	endpoint := fmt.Sprintf("%s/api/messages/%s/reactions", c.apiBase, url.PathEscape(messageID))
	body := map[string]string{"emoji": emoji}

	err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil)
	if err != nil {
		var se *statusError
		if asStatusError(err, &se) && se.code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// Roster returns the room's participants.
func (c *Client) Roster(ctx context.Context, roomID string) ([]Participant, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/participants", c.apiBase, url.PathEscape(roomID))

	var out struct {
		Participants []Participant `json:"participants"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	return out.Participants, nil
}

// Heartbeat reports the agent as alive.
func (c *Client) Heartbeat(ctx context.Context, agentID string) error {
	endpoint := fmt.Sprintf("%s/api/agents/%s/heartbeat", c.apiBase, url.PathEscape(agentID))
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// SetComposing toggles the agent's typing indicator.
func (c *Client) SetComposing(ctx context.Context, agentID string, composing bool) error {
	endpoint := fmt.Sprintf("%s/api/agents/%s/composing", c.apiBase, url.PathEscape(agentID))
	body := map[string]bool{"composing": composing}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("set composing: %w", err)
	}
	return nil
}

// PollEvents returns events newer than cursor, plus the next cursor to poll
// from. An empty cursor starts from the present.
func (c *Client) PollEvents(ctx context.Context, cursor string) ([]Event, string, error) {
	endpoint := c.apiBase + "/api/events"
	if strings.TrimSpace(cursor) != "" {
		endpoint += "?since=" + url.QueryEscape(cursor)
	}

	var out struct {
		Events []Event `json:"events"`
		Cursor string  `json:"cursor"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, cursor, fmt.Errorf("poll events: %w", err)
	}
	next := out.Cursor
	if next == "" {
		next = cursor
	}
	return out.Events, next, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("room API status=%d body=%s", e.code, e.body)
}

func asStatusError(err error, target **statusError) bool {
	return errors.As(err, target)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &statusError{code: resp.StatusCode, body: snippet}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
