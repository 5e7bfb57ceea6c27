// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
	"github.com/dotsetgreg/roomfleet/pkg/providers"
	"github.com/dotsetgreg/roomfleet/pkg/respond"
	"github.com/dotsetgreg/roomfleet/pkg/tools"
)

// Turn kinds.
const (
	TurnMention   = "mention"
	TurnProactive = "proactive"
	TurnSummary   = "summary"
)

type TurnRequest struct {
	Profile  config.AgentProfile
	Profiles []config.AgentProfile
	RoomID   string
	Trigger  *chat.Message
	Kind     string
}

type TurnResult struct {
	TurnID     string
	FinalText  string
	Declined   bool
	ModelCalls int
}

// Orchestrator drives one agent turn: assemble context, prompt the model,
// execute requested tools, and repeat for a bounded number of extra rounds.
type Orchestrator struct {
	provider      providers.Provider
	gateway       *tools.Gateway
	builder       *ContextBuilder
	defaultFamily string
	roundCap      int
	roundTimeout  time.Duration
}

func NewOrchestrator(provider providers.Provider, gateway *tools.Gateway, builder *ContextBuilder, defaultFamily string, roundCap int, roundTimeout time.Duration) *Orchestrator {
	if roundCap < 0 {
		roundCap = 2
	}
	if roundTimeout <= 0 {
		roundTimeout = 60 * time.Second
	}
	return &Orchestrator{
		provider:      provider,
		gateway:       gateway,
		builder:       builder,
		defaultFamily: defaultFamily,
		roundCap:      roundCap,
		roundTimeout:  roundTimeout,
	}
}

// RunTurn executes one full decision cycle. An empty FinalText with Declined
// false means the model produced no usable output; the caller posts nothing
// either way.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	result := &TurnResult{TurnID: uuid.NewString()}
	profile := req.Profile

	entries, roster, err := o.assembleContext(ctx, req)
	if err != nil {
		return nil, err
	}

	format := respond.FormatForFamily(o.familyFor(profile))
	systemPrompt := BuildSystemPrompt(profile, roster, o.gateway.EnabledSummaries(profile))
	turns := EntriesToTurns(entries, profile)

	triggerID := ""
	if req.Trigger != nil {
		triggerID = req.Trigger.ID
	}

	var bestFinal string
	for round := 0; ; round++ {
		// One deadline spans the whole round: the model call and any tool
		// execution it requests.
		roundCtx, cancel := context.WithTimeout(ctx, o.roundTimeout)

		output, err := o.promptOnce(roundCtx, profile, systemPrompt, turns)
		if err != nil {
			cancel()
			return nil, err
		}
		result.ModelCalls++

		parsed := respond.Parse(format, output)
		if parsed.Declined {
			cancel()
			logger.InfoCF("orchestrator", "Agent declined to respond", map[string]interface{}{
				"agent_id": profile.ID,
				"turn_id":  result.TurnID,
			})
			result.Declined = true
			return result, nil
		}
		if strings.TrimSpace(parsed.FinalText) != "" {
			bestFinal = strings.TrimSpace(parsed.FinalText)
		}

		if len(parsed.ToolCalls) == 0 {
			cancel()
			result.FinalText = bestFinal
			return result, nil
		}
		if round >= o.roundCap {
			cancel()
			logger.WarnCF("orchestrator", "Round cap reached with tool calls pending", map[string]interface{}{
				"agent_id":      profile.ID,
				"turn_id":       result.TurnID,
				"pending_calls": len(parsed.ToolCalls),
			})
			result.FinalText = bestFinal
			return result, nil
		}

		execCtx := tools.WithExecutionContext(roundCtx, profile.ID, req.RoomID, triggerID)
		toolResults := o.executeRound(execCtx, profile, parsed.ToolCalls)
		cancel()

		// One synthetic tool-results turn per round; the earlier history
		// stays untouched.
		turns = append(turns, providers.Turn{Role: "assistant", Text: output})
		turns = append(turns, providers.Turn{Role: "user", Text: toolResults})
	}
}

func (o *Orchestrator) assembleContext(ctx context.Context, req TurnRequest) ([]ContextEntry, []chat.Participant, error) {
	if req.Kind == TurnSummary {
		return o.builder.BuildLongWindow(ctx, req.RoomID, req.Profile, req.Profiles)
	}

	var entries []ContextEntry
	var err error
	if req.Trigger != nil && strings.TrimSpace(req.Trigger.ReplyTo) != "" {
		// A reply turn anchors the window on the replied-to message so the
		// exchange being pointed back at is in view even when it has scrolled
		// out of the recent history.
		entries, err = o.builder.BuildAroundMessage(ctx, req.RoomID, req.Trigger.ReplyTo, req.Profile, req.Profiles, 0, 0)
	} else {
		entries, err = o.builder.BuildWindow(ctx, req.RoomID, req.Profile, req.Profiles, 0)
	}
	if err != nil {
		return nil, nil, err
	}
	roster, err := o.builder.Roster(ctx, req.RoomID)
	if err != nil {
		logger.WarnCF("orchestrator", "Roster fetch failed, prompting without it", map[string]interface{}{
			"agent_id": req.Profile.ID,
			"error":    err.Error(),
		})
		roster = nil
	}
	return entries, roster, nil
}

func (o *Orchestrator) promptOnce(ctx context.Context, profile config.AgentProfile, systemPrompt string, turns []providers.Turn) (string, error) {
	output, err := o.provider.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: systemPrompt,
		Turns:        turns,
		Model:        profile.Model.Name,
		MaxTokens:    profile.Model.MaxTokens,
		Temperature:  profile.Model.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("model call for %s: %w", profile.ID, err)
	}
	return output, nil
}

// executeRound runs every requested tool and aggregates the outcomes into a
// single tool-results payload.
func (o *Orchestrator) executeRound(ctx context.Context, profile config.AgentProfile, calls []respond.ToolCall) string {
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, call := range calls {
		result := o.gateway.Dispatch(ctx, profile, call.Name, call.Arguments)
		status := "ok"
		if result.IsError {
			status = "error"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", result.ToolName, status, result.ForLLM)
	}
	return b.String()
}

func (o *Orchestrator) familyFor(profile config.AgentProfile) string {
	if strings.TrimSpace(profile.Model.Family) != "" {
		return profile.Model.Family
	}
	return o.defaultFamily
}
