package trigger

import (
	"sync"
	"time"
)

// Cooldowns tracks the earliest time each agent may respond proactively in
// each room. Deadlines only ever move forward.
type Cooldowns struct {
	mu   sync.Mutex
	next map[string]time.Time
}

func NewCooldowns() *Cooldowns {
	return &Cooldowns{next: make(map[string]time.Time)}
}

func cooldownKey(agentID, roomID string) string {
	return agentID + "|" + roomID
}

// Eligible reports whether the agent's cooldown for the room has elapsed.
func (c *Cooldowns) Eligible(agentID, roomID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.next[cooldownKey(agentID, roomID)]
	if !ok {
		return true
	}
	return !now.Before(deadline)
}

// MarkResponded pushes the agent's next eligible time forward. A shorter
// deadline than the current one is ignored.
func (c *Cooldowns) MarkResponded(agentID, roomID string, now time.Time, cooldown time.Duration) {
	if cooldown <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cooldownKey(agentID, roomID)
	deadline := now.Add(cooldown)
	if existing, ok := c.next[key]; ok && existing.After(deadline) {
		return
	}
	c.next[key] = deadline
}
