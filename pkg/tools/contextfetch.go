package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
)

type historyFetcher interface {
	MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]chat.Message, error)
	RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	Roster(ctx context.Context, roomID string) ([]chat.Participant, error)
}

// FetchContextTool pulls messages around a specific message for "what was
// that about" flows.
type FetchContextTool struct {
	room historyFetcher
}

func NewFetchContextTool(room historyFetcher) *FetchContextTool {
	return &FetchContextTool{room: room}
}

func (t *FetchContextTool) Name() string {
	return "fetch_context"
}

func (t *FetchContextTool) Description() string {
	return "Fetch the messages surrounding a specific message in the room."
}

func (t *FetchContextTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message_id": map[string]interface{}{
				"type":        "string",
				"description": "Message id to fetch context around; omit for the triggering message",
			},
			"before": map[string]interface{}{
				"type":        "integer",
				"description": "Messages before the target (default 5)",
			},
			"after": map[string]interface{}{
				"type":        "integer",
				"description": "Messages after the target (default 5)",
			},
		},
	}
}

func (t *FetchContextTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	roomID := roomFromContext(ctx)
	if roomID == "" {
		return ErrorResult("no room in execution context")
	}

	messageID, _ := args["message_id"].(string)
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		messageID = triggerMessageFromContext(ctx)
	}
	if messageID == "" {
		return ErrorResult("no target message to fetch context around")
	}

	before := intArg(args, "before", 5)
	after := intArg(args, "after", 5)

	messages, err := t.room.MessagesAround(ctx, roomID, messageID, before, after)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetching context: %v", err))
	}
	if len(messages) == 0 {
		return TextResult("No messages found around " + messageID)
	}
	return TextResult(renderMessages(messages))
}

// FetchLongContextTool pulls an extended history slice plus the roster, for
// summarization and "need more history" flows. This is the only capability
// allowed past the default window size.
type FetchLongContextTool struct {
	room historyFetcher
	cap  int
}

func NewFetchLongContextTool(room historyFetcher, maxMessages int) *FetchLongContextTool {
	if maxMessages <= 0 {
		maxMessages = 200
	}
	return &FetchLongContextTool{room: room, cap: maxMessages}
}

func (t *FetchLongContextTool) Name() string {
	return "fetch_long_context"
}

func (t *FetchLongContextTool) Description() string {
	return "Fetch an extended message history plus the participant roster. Use for summaries."
}

func (t *FetchLongContextTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "How many messages to fetch",
			},
		},
	}
}

func (t *FetchLongContextTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	roomID := roomFromContext(ctx)
	if roomID == "" {
		return ErrorResult("no room in execution context")
	}

	limit := intArg(args, "limit", t.cap)
	if limit > t.cap {
		limit = t.cap
	}

	messages, err := t.room.RecentMessages(ctx, roomID, limit)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetching history: %v", err))
	}

	var b strings.Builder
	roster, err := t.room.Roster(ctx, roomID)
	if err == nil && len(roster) > 0 {
		b.WriteString("Participants:\n")
		for _, p := range roster {
			fmt.Fprintf(&b, "- %s (%s)\n", p.DisplayName, p.Kind)
		}
		b.WriteString("\n")
	}
	b.WriteString(renderMessages(messages))
	return TextResult(b.String())
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if int(v) > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}

func renderMessages(messages []chat.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", msg.ID, msg.SenderID, msg.Text))
	}
	return strings.Join(lines, "\n")
}
