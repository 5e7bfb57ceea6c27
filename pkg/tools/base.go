// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package tools

import "context"

// Tool is the interface that all built-in capabilities implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

type executionContext struct {
	agentID          string
	roomID           string
	triggerMessageID string
}

type executionContextKey struct{}

// WithExecutionContext annotates ctx with the identity of the responding
// agent, the room, and the message that triggered the turn. Built-ins use it
// to default arguments like "which message to react to".
func WithExecutionContext(ctx context.Context, agentID, roomID, triggerMessageID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, ok := executionContextFrom(ctx); ok {
		if agentID == "" {
			agentID = existing.agentID
		}
		if roomID == "" {
			roomID = existing.roomID
		}
		if triggerMessageID == "" {
			triggerMessageID = existing.triggerMessageID
		}
	}
	return context.WithValue(ctx, executionContextKey{}, executionContext{
		agentID:          agentID,
		roomID:           roomID,
		triggerMessageID: triggerMessageID,
	})
}

func executionContextFrom(ctx context.Context) (executionContext, bool) {
	if ctx == nil {
		return executionContext{}, false
	}
	execCtx, ok := ctx.Value(executionContextKey{}).(executionContext)
	return execCtx, ok
}

func roomFromContext(ctx context.Context) string {
	execCtx, _ := executionContextFrom(ctx)
	return execCtx.roomID
}

func triggerMessageFromContext(ctx context.Context) string {
	execCtx, _ := executionContextFrom(ctx)
	return execCtx.triggerMessageID
}
