package connectors

import (
	"strings"
	"sync"
)

type TransportKind string

const (
	TransportStreamingRPC TransportKind = "streaming-rpc"
	TransportServerPush   TransportKind = "server-push"
	TransportREST         TransportKind = "rest"
)

// Session is a resolved transport binding for one remote tool server. It
// lives until a call over it fails, at which point it is evicted and the
// server re-negotiated. One Session is shared by every worker talking to the
// same server, and servers may stamp a new session id on any reply, so the
// id is accessed only through the guarded methods.
type Session struct {
	BaseURL    string
	Kind       TransportKind
	Endpoint   string
	AuthHeader string

	mu        sync.Mutex
	sessionID string
}

// SessionID returns the server-assigned session id, if any.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) setSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

type SessionCache struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionCache() *SessionCache {
	return &SessionCache{sessions: map[string]*Session{}}
}

func (c *SessionCache) Get(baseURL string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[normalizeBase(baseURL)]
	return session, ok
}

func (c *SessionCache) Put(session *Session) {
	if session == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[normalizeBase(session.BaseURL)] = session
}

func (c *SessionCache) Evict(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, normalizeBase(baseURL))
}

func normalizeBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
