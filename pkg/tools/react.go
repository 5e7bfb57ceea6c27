package tools

import (
	"context"
	"fmt"
	"strings"
)

type reactionAdder interface {
	AddReaction(ctx context.Context, messageID, emoji string) error
}

// ReactTool adds an emoji reaction to a room message. Re-adding an existing
// reaction is a no-op on the room side, so retried calls never double-apply.
type ReactTool struct {
	room reactionAdder
}

func NewReactTool(room reactionAdder) *ReactTool {
	return &ReactTool{room: room}
}

func (t *ReactTool) Name() string {
	return "react_to_message"
}

func (t *ReactTool) Description() string {
	return "React to a chat message with an emoji. Defaults to the message that triggered you."
}

func (t *ReactTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"emoji": map[string]interface{}{
				"type":        "string",
				"description": "Emoji to react with",
			},
			"message_id": map[string]interface{}{
				"type":        "string",
				"description": "Target message id; omit for the triggering message",
			},
		},
		"required": []string{"emoji"},
	}
}

func (t *ReactTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	emoji, _ := args["emoji"].(string)
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		if raw, ok := args["input"].(string); ok {
			emoji = strings.TrimSpace(raw)
		}
	}
	if emoji == "" {
		return ErrorResult("emoji is required")
	}

	messageID, _ := args["message_id"].(string)
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		messageID = triggerMessageFromContext(ctx)
	}
	if messageID == "" {
		return ErrorResult("no target message for reaction")
	}

	if err := t.room.AddReaction(ctx, messageID, emoji); err != nil {
		return ErrorResult(fmt.Sprintf("adding reaction: %v", err))
	}
	return TextResult(fmt.Sprintf("Reacted to %s with %s", messageID, emoji))
}
