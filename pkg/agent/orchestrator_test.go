package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/providers"
	"github.com/dotsetgreg/roomfleet/pkg/tools"
)

type scriptedProvider struct {
	responses []string
	calls     []providers.CompletionRequest
}

func (p *scriptedProvider) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	p.calls = append(p.calls, req)
	if len(p.responses) == 0 {
		return "", fmt.Errorf("no scripted response left")
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

type fakeRoomReader struct {
	recent      []chat.Message
	around      []chat.Message
	roster      []chat.Participant
	aroundCalls []string
}

func (f *fakeRoomReader) RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if limit < len(f.recent) {
		return f.recent[len(f.recent)-limit:], nil
	}
	return f.recent, nil
}

func (f *fakeRoomReader) MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]chat.Message, error) {
	f.aroundCalls = append(f.aroundCalls, messageID)
	if f.around != nil {
		return f.around, nil
	}
	return f.recent, nil
}

func (f *fakeRoomReader) Roster(ctx context.Context, roomID string) ([]chat.Participant, error) {
	return f.roster, nil
}

type echoTool struct{ replies string }

func (t *echoTool) Name() string { return "echo" }

func (t *echoTool) Description() string { return "echoes" }

func (t *echoTool) Parameters() map[string]interface{} { return map[string]interface{}{} }
func (t *echoTool) Execute(ctx context.Context, args map[string]interface{}) *tools.ToolResult {
	input, _ := args["input"].(string)
	return tools.TextResult(t.replies + input)
}

// stallTool blocks until its context is cancelled.
type stallTool struct{}

func (t *stallTool) Name() string { return "stall" }

func (t *stallTool) Description() string { return "waits forever" }

func (t *stallTool) Parameters() map[string]interface{} { return map[string]interface{}{} }

func (t *stallTool) Execute(ctx context.Context, args map[string]interface{}) *tools.ToolResult {
	<-ctx.Done()
	return tools.ErrorResult("interrupted")
}

func helperProfile() config.AgentProfile {
	return config.AgentProfile{
		ID:          "helper-1",
		DisplayName: "Helper",
		Active:      true,
		Capabilities: config.Capabilities{
			AnswerOnMention: true,
		},
	}
}

func newTestOrchestrator(provider providers.Provider, room *fakeRoomReader, roundCap int) *Orchestrator {
	registry := tools.NewRegistry()
	registry.Register(&echoTool{replies: "echo: "})
	gateway := tools.NewGateway(registry, nil)
	builder := NewContextBuilder(room, 10, 200)
	return NewOrchestrator(provider, gateway, builder, "openai", roundCap, time.Minute)
}

func triggerMessage() *chat.Message {
	return &chat.Message{
		ID:       "m1",
		RoomID:   "general",
		SenderID: "u1",
		Text:     "@Helper what's 2+2?",
		Mentions: []string{"helper-1"},
	}
}

func TestMentionWithoutToolsIsSingleRound(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"4"}}
	room := &fakeRoomReader{
		recent: []chat.Message{*triggerMessage()},
		roster: []chat.Participant{{ID: "u1", DisplayName: "Ana", Kind: chat.KindHuman}},
	}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  triggerMessage(),
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", result.FinalText)
	assert.Equal(t, 1, result.ModelCalls)
	assert.False(t, result.Declined)

	// No synthetic tool-results turn was ever sent.
	require.Len(t, provider.calls, 1)
	for _, turn := range provider.calls[0].Turns {
		assert.NotContains(t, turn.Text, "Tool results:")
	}
}

func TestToolRoundFeedsResultsBack(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"[ECHO:ping]",
		"The tool said: echo: ping",
	}}
	room := &fakeRoomReader{recent: []chat.Message{*triggerMessage()}}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  triggerMessage(),
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, "The tool said: echo: ping", result.FinalText)
	assert.Equal(t, 2, result.ModelCalls)

	require.Len(t, provider.calls, 2)
	secondTurns := provider.calls[1].Turns
	last := secondTurns[len(secondTurns)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Text, "Tool results:")
	assert.Contains(t, last.Text, "echo: ping")
}

func TestRoundCapTerminatesToolLoop(t *testing.T) {
	// A model that always asks for tools must terminate in roundCap+1 calls.
	provider := &scriptedProvider{responses: []string{
		"[ECHO:a]", "[ECHO:b]", "[ECHO:c]", "[ECHO:d]", "[ECHO:e]",
	}}
	room := &fakeRoomReader{recent: []chat.Message{*triggerMessage()}}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  triggerMessage(),
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ModelCalls)
	assert.Empty(t, result.FinalText)
	assert.False(t, result.Declined)
}

func TestRoundCapKeepsBestAvailableFinal(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"Working on it. [ECHO:a]",
		"[ECHO:b]",
		"[ECHO:c]",
	}}
	room := &fakeRoomReader{recent: []chat.Message{*triggerMessage()}}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  triggerMessage(),
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ModelCalls)
	assert.Equal(t, "Working on it.", result.FinalText)
}

func TestDeclineIsDistinctFromNoOutput(t *testing.T) {
	room := &fakeRoomReader{recent: []chat.Message{*triggerMessage()}}

	declineProvider := &scriptedProvider{responses: []string{"[[NO_RESPONSE]]"}}
	orch := newTestOrchestrator(declineProvider, room, 2)
	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile: helperProfile(), Profiles: []config.AgentProfile{helperProfile()},
		RoomID: "general", Trigger: triggerMessage(), Kind: TurnMention,
	})
	require.NoError(t, err)
	assert.True(t, result.Declined)
	assert.Empty(t, result.FinalText)

	emptyProvider := &scriptedProvider{responses: []string{"   "}}
	orch = newTestOrchestrator(emptyProvider, room, 2)
	result, err = orch.RunTurn(context.Background(), TurnRequest{
		Profile: helperProfile(), Profiles: []config.AgentProfile{helperProfile()},
		RoomID: "general", Trigger: triggerMessage(), Kind: TurnMention,
	})
	require.NoError(t, err)
	assert.False(t, result.Declined)
	assert.Empty(t, result.FinalText)
}

func TestDirectionTags(t *testing.T) {
	helper := helperProfile()
	scribe := config.AgentProfile{ID: "scribe-1", DisplayName: "Scribe"}
	profiles := []config.AgentProfile{helper, scribe}

	messages := []chat.Message{
		{ID: "m1", SenderID: "u1", Text: "@Helper hi", Mentions: []string{"helper-1"}},
		{ID: "m2", SenderID: "u1", Text: "@Scribe take notes", Mentions: []string{"scribe-1"}},
		{ID: "m3", SenderID: "u1", Text: "morning everyone"},
	}
	entries := tagMessages(messages, helper, profiles)
	require.Len(t, entries, 3)
	assert.Equal(t, DirectionToYou, entries[0].DirectionTag)
	assert.Equal(t, DirectionToOtherAgent, entries[1].DirectionTag)
	assert.Equal(t, DirectionToEveryone, entries[2].DirectionTag)
}

func TestSummaryTurnUsesLongWindowAndRoster(t *testing.T) {
	recent := make([]chat.Message, 50)
	for i := range recent {
		recent[i] = chat.Message{ID: fmt.Sprintf("m%d", i), SenderID: "u1", Text: fmt.Sprintf("msg %d", i)}
	}
	room := &fakeRoomReader{
		recent: recent,
		roster: []chat.Participant{{ID: "u1", DisplayName: "Ana", Kind: chat.KindHuman}},
	}
	provider := &scriptedProvider{responses: []string{"Summary: lots of chatter."}}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Kind:     TurnSummary,
	})
	require.NoError(t, err)
	assert.Equal(t, "Summary: lots of chatter.", result.FinalText)
	require.Len(t, provider.calls, 1)
	// The long window carries everything, not just the default 10.
	assert.Len(t, provider.calls[0].Turns, 50)
	assert.Contains(t, provider.calls[0].SystemPrompt, "Ana (human)")
}

func TestReplyTriggerAnchorsWindowOnRepliedMessage(t *testing.T) {
	trigger := triggerMessage()
	trigger.ReplyTo = "m0"
	trigger.Text = "@Helper what did we decide here?"

	room := &fakeRoomReader{
		recent: []chat.Message{*trigger},
		around: []chat.Message{
			{ID: "m0", RoomID: "general", SenderID: "u1", Text: "proposal: ship on friday"},
			*trigger,
		},
	}
	provider := &scriptedProvider{responses: []string{"Friday was the decision."}}
	orch := newTestOrchestrator(provider, room, 2)

	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  trigger,
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, "Friday was the decision.", result.FinalText)

	// The window was fetched around the replied-to message, not from the tail.
	require.Equal(t, []string{"m0"}, room.aroundCalls)
	require.Len(t, provider.calls, 1)
	sawReplied := false
	for _, turn := range provider.calls[0].Turns {
		if strings.Contains(turn.Text, "proposal: ship on friday") {
			sawReplied = true
		}
	}
	assert.True(t, sawReplied)
}

func TestRoundDeadlineBoundsToolExecution(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"[STALL:now]", "done"}}
	room := &fakeRoomReader{recent: []chat.Message{*triggerMessage()}}

	registry := tools.NewRegistry()
	registry.Register(&stallTool{})
	gateway := tools.NewGateway(registry, nil)
	builder := NewContextBuilder(room, 10, 200)
	orch := NewOrchestrator(provider, gateway, builder, "openai", 2, 50*time.Millisecond)

	start := time.Now()
	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Profile:  helperProfile(),
		Profiles: []config.AgentProfile{helperProfile()},
		RoomID:   "general",
		Trigger:  triggerMessage(),
		Kind:     TurnMention,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalText)
	assert.Equal(t, 2, result.ModelCalls)
	// A tool that never returns on its own is cut off at the round deadline.
	assert.Less(t, time.Since(start), 2*time.Second)

	secondTurns := provider.calls[1].Turns
	last := secondTurns[len(secondTurns)-1]
	assert.Contains(t, last.Text, "Tool results:")
	assert.Contains(t, last.Text, "error")
}

func TestOwnMessagesBecomeAssistantTurns(t *testing.T) {
	helper := helperProfile()
	entries := []ContextEntry{
		{MessageID: "m1", SenderID: "u1", DirectionTag: DirectionToYou, Text: "hi"},
		{MessageID: "m2", SenderID: "helper-1", DirectionTag: DirectionToEveryone, Text: "hello"},
	}
	turns := EntriesToTurns(entries, helper)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Contains(t, turns[0].Text, "[to-you]")
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "hello", turns[1].Text)
}
