// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/providers"
	"github.com/dotsetgreg/roomfleet/pkg/respond"
	"github.com/dotsetgreg/roomfleet/pkg/trigger"
)

// Direction tags on context entries, computed per message relative to the
// responding agent.
const (
	DirectionToYou        = "to-you"
	DirectionToOtherAgent = "to-other-agent"
	DirectionToEveryone   = "to-everyone"
)

type ContextEntry struct {
	MessageID    string
	SenderID     string
	DirectionTag string
	Text         string
}

type roomReader interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]chat.Message, error)
	Roster(ctx context.Context, roomID string) ([]chat.Participant, error)
}

// ContextBuilder assembles the conversation window an agent sees. Windows
// are built fresh per invocation and never stored.
type ContextBuilder struct {
	room          roomReader
	defaultWindow int
	longCap       int
}

func NewContextBuilder(room roomReader, defaultWindow, longCap int) *ContextBuilder {
	if defaultWindow <= 0 {
		defaultWindow = 10
	}
	if longCap <= 0 {
		longCap = 200
	}
	return &ContextBuilder{
		room:          room,
		defaultWindow: defaultWindow,
		longCap:       longCap,
	}
}

// BuildWindow returns the most recent n messages as tagged entries. n <= 0
// uses the default window size; n is capped at the default, long history goes
// through BuildLongWindow only.
func (b *ContextBuilder) BuildWindow(ctx context.Context, roomID string, self config.AgentProfile, profiles []config.AgentProfile, n int) ([]ContextEntry, error) {
	if n <= 0 || n > b.defaultWindow {
		n = b.defaultWindow
	}
	messages, err := b.room.RecentMessages(ctx, roomID, n)
	if err != nil {
		return nil, fmt.Errorf("build window: %w", err)
	}
	return tagMessages(messages, self, profiles), nil
}

// BuildAroundMessage returns a symmetric slice around messageID.
func (b *ContextBuilder) BuildAroundMessage(ctx context.Context, roomID, messageID string, self config.AgentProfile, profiles []config.AgentProfile, before, after int) ([]ContextEntry, error) {
	if before <= 0 {
		before = b.defaultWindow / 2
	}
	if after <= 0 {
		after = b.defaultWindow / 2
	}
	messages, err := b.room.MessagesAround(ctx, roomID, messageID, before, after)
	if err != nil {
		return nil, fmt.Errorf("build context around %s: %w", messageID, err)
	}
	return tagMessages(messages, self, profiles), nil
}

// BuildLongWindow returns up to the long-history cap plus the roster, for
// summarization and need-more-history flows.
func (b *ContextBuilder) BuildLongWindow(ctx context.Context, roomID string, self config.AgentProfile, profiles []config.AgentProfile) ([]ContextEntry, []chat.Participant, error) {
	messages, err := b.room.RecentMessages(ctx, roomID, b.longCap)
	if err != nil {
		return nil, nil, fmt.Errorf("build long window: %w", err)
	}
	roster, err := b.room.Roster(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch roster for long window: %w", err)
	}
	return tagMessages(messages, self, profiles), roster, nil
}

// Roster fetches the room's participants for prompt assembly.
func (b *ContextBuilder) Roster(ctx context.Context, roomID string) ([]chat.Participant, error) {
	return b.room.Roster(ctx, roomID)
}

func tagMessages(messages []chat.Message, self config.AgentProfile, profiles []config.AgentProfile) []ContextEntry {
	entries := make([]ContextEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, ContextEntry{
			MessageID:    msg.ID,
			SenderID:     msg.SenderID,
			DirectionTag: directionFor(&msg, self, profiles),
			Text:         msg.Text,
		})
	}
	return entries
}

// directionFor computes a message's direction relative to the responding
// agent. A self-mention tags to-you even when other agents are named too.
func directionFor(msg *chat.Message, self config.AgentProfile, profiles []config.AgentProfile) string {
	if trigger.MentionsAgent(msg, self) {
		return DirectionToYou
	}
	for _, other := range profiles {
		if other.ID == self.ID {
			continue
		}
		if trigger.MentionsAgent(msg, other) {
			return DirectionToOtherAgent
		}
	}
	return DirectionToEveryone
}

// BuildSystemPrompt combines the agent's prompt, the enumerated roster, and
// the tool instructions for its output format.
func BuildSystemPrompt(self config.AgentProfile, roster []chat.Participant, toolSummaries []string) string {
	var b strings.Builder
	prompt := strings.TrimSpace(self.SystemPrompt)
	if prompt == "" {
		prompt = fmt.Sprintf("You are %s, a helpful participant in a group chat room.", self.DisplayName)
	}
	b.WriteString(prompt)

	if len(roster) > 0 {
		b.WriteString("\n\nRoom participants:\n")
		for i, p := range roster {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.DisplayName, p.Kind)
		}
	}

	if len(toolSummaries) > 0 {
		b.WriteString("\nAvailable tools:\n")
		b.WriteString(strings.Join(toolSummaries, "\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nIf you have nothing useful to add, reply with exactly %s.", respond.SkipSentinel)
	return b.String()
}

// EntriesToTurns renders tagged entries as model turns. The agent's own
// messages become assistant turns; everyone else's become user turns carrying
// the direction tag.
func EntriesToTurns(entries []ContextEntry, self config.AgentProfile) []providers.Turn {
	turns := make([]providers.Turn, 0, len(entries))
	for _, entry := range entries {
		if entry.SenderID == self.ID {
			turns = append(turns, providers.Turn{Role: "assistant", Text: entry.Text})
			continue
		}
		turns = append(turns, providers.Turn{
			Role: "user",
			Text: fmt.Sprintf("[%s] %s: %s", entry.DirectionTag, entry.SenderID, entry.Text),
		})
	}
	return turns
}
