// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package trigger

import (
	"strings"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
)

// Decision is one agent the event should wake, with whether the response is
// mandatory (mentions bypass cooldown) or proactive.
type Decision struct {
	Agent       config.AgentProfile
	MustRespond bool
}

// Detector decides which agents an incoming room event should wake.
type Detector struct {
	cooldowns *Cooldowns
	lookahead time.Duration
}

func NewDetector(cooldowns *Cooldowns, lookahead time.Duration) *Detector {
	if cooldowns == nil {
		cooldowns = NewCooldowns()
	}
	if lookahead <= 0 {
		lookahead = 4 * time.Second
	}
	return &Detector{cooldowns: cooldowns, lookahead: lookahead}
}

func (d *Detector) Cooldowns() *Cooldowns {
	return d.cooldowns
}

// Evaluate returns the agents woken by event, in profile order. recent is the
// room's newest messages (oldest first) and feeds the burst guard. Evaluate
// has no side effects; callers mark cooldowns after a proactive post succeeds.
func (d *Detector) Evaluate(event chat.Event, profiles []config.AgentProfile, recent []chat.Message, now time.Time) []Decision {
	switch event.Kind {
	case chat.EventMessageCreated:
		if event.Message == nil {
			return nil
		}
		return d.evaluateMessage(event, profiles, recent, now)
	case chat.EventSummaryRequested:
		var decisions []Decision
		for _, profile := range profiles {
			if profile.Capabilities.CanSummarize {
				decisions = append(decisions, Decision{Agent: profile, MustRespond: true})
			}
		}
		return decisions
	default:
		// reaction-added and unknown kinds never wake anyone.
		return nil
	}
}

func (d *Detector) evaluateMessage(event chat.Event, profiles []config.AgentProfile, recent []chat.Message, now time.Time) []Decision {
	msg := event.Message
	var decisions []Decision

	for _, profile := range profiles {
		if msg.SenderID == profile.ID {
			continue
		}

		// An explicit self-mention always wins, even when the message also
		// names other agents.
		if MentionsAgent(msg, profile) {
			if !profile.Capabilities.AnswerOnMention {
				continue
			}
			decisions = append(decisions, Decision{Agent: profile, MustRespond: true})
			continue
		}

		if !profile.Capabilities.AnswerProactively {
			continue
		}
		if targetsOtherAgent(msg, profile, profiles) {
			continue
		}
		if !d.cooldowns.Eligible(profile.ID, event.RoomID, now) {
			continue
		}
		if senderStillTyping(msg, recent, now, d.lookahead) {
			logger.DebugCF("trigger", "deferring, sender still typing", map[string]interface{}{
				"agent_id":  profile.ID,
				"sender_id": msg.SenderID,
			})
			continue
		}
		decisions = append(decisions, Decision{Agent: profile, MustRespond: false})
	}

	return decisions
}

// MentionsAgent reports whether msg names the agent explicitly, by target id
// or by @displayname in the text.
func MentionsAgent(msg *chat.Message, profile config.AgentProfile) bool {
	for _, id := range msg.Mentions {
		if id == profile.ID {
			return true
		}
	}
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		return false
	}
	return containsHandle(msg.Text, name)
}

// containsHandle matches @name case-insensitively at word boundaries.
func containsHandle(text, name string) bool {
	lower := strings.ToLower(text)
	handle := "@" + strings.ToLower(name)
	idx := 0
	for {
		pos := strings.Index(lower[idx:], handle)
		if pos < 0 {
			return false
		}
		pos += idx
		end := pos + len(handle)
		if end >= len(lower) || !isHandleChar(lower[end]) {
			return true
		}
		idx = end
	}
}

func isHandleChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func targetsOtherAgent(msg *chat.Message, profile config.AgentProfile, profiles []config.AgentProfile) bool {
	for _, other := range profiles {
		if other.ID == profile.ID {
			continue
		}
		for _, id := range msg.Mentions {
			if id == other.ID {
				return true
			}
		}
		if strings.TrimSpace(other.DisplayName) != "" && containsHandle(msg.Text, other.DisplayName) {
			return true
		}
	}
	return false
}

func senderStillTyping(msg *chat.Message, recent []chat.Message, now time.Time, horizon time.Duration) bool {
	for _, other := range recent {
		if other.ID == msg.ID || other.SenderID != msg.SenderID {
			continue
		}
		if !other.CreatedAt.After(msg.CreatedAt) {
			continue
		}
		if now.Sub(other.CreatedAt) <= horizon {
			return true
		}
	}
	return false
}
