// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package agent

import (
	"context"
	"strings"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
	"github.com/dotsetgreg/roomfleet/pkg/trigger"
)

type roomAPI interface {
	roomReader
	PostMessage(ctx context.Context, roomID string, post chat.PostRequest) (*chat.Message, error)
	Heartbeat(ctx context.Context, agentID string) error
	SetComposing(ctx context.Context, agentID string, composing bool) error
	PollEvents(ctx context.Context, cursor string) ([]chat.Event, string, error)
}

// Runtime is one agent's supervised worker: it polls the room's event feed,
// evaluates triggers for its own profile, and runs turns through the
// orchestrator. Profiles are read fresh from the store per event so config
// edits apply without a restart.
type Runtime struct {
	agentID           string
	store             *config.Store
	room              roomAPI
	detector          *trigger.Detector
	orchestrator      *Orchestrator
	pollInterval      time.Duration
	heartbeatInterval time.Duration

	cursor string
}

func NewRuntime(agentID string, store *config.Store, room roomAPI, detector *trigger.Detector, orchestrator *Orchestrator, pollInterval, heartbeatInterval time.Duration) *Runtime {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 5 * time.Second
	}
	return &Runtime{
		agentID:           agentID,
		store:             store,
		room:              room,
		detector:          detector,
		orchestrator:      orchestrator,
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	logger.InfoCF("runtime", "Agent worker started", map[string]interface{}{
		"agent_id": r.agentID,
	})

	go r.heartbeatLoop(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.InfoCF("runtime", "Agent worker stopped", map[string]interface{}{
				"agent_id": r.agentID,
			})
			return ctx.Err()
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.room.Heartbeat(ctx, r.agentID); err != nil {
				logger.WarnCF("runtime", "Heartbeat failed", map[string]interface{}{
					"agent_id": r.agentID,
					"error":    err.Error(),
				})
			}
		}
	}
}

func (r *Runtime) pollOnce(ctx context.Context) {
	events, cursor, err := r.room.PollEvents(ctx, r.cursor)
	if err != nil {
		logger.WarnCF("runtime", "Event poll failed", map[string]interface{}{
			"agent_id": r.agentID,
			"error":    err.Error(),
		})
		return
	}
	r.cursor = cursor

	for _, event := range events {
		r.handleEvent(ctx, event)
	}
}

func (r *Runtime) handleEvent(ctx context.Context, event chat.Event) {
	profiles := r.store.ActiveProfiles()
	var self config.AgentProfile
	found := false
	for _, profile := range profiles {
		if profile.ID == r.agentID {
			self = profile
			found = true
			break
		}
	}
	if !found {
		return
	}

	var recent []chat.Message
	if event.Kind == chat.EventMessageCreated {
		recent, _ = r.room.RecentMessages(ctx, event.RoomID, 10)
	}

	decisions := r.detector.Evaluate(event, profiles, recent, time.Now())
	for _, decision := range decisions {
		if decision.Agent.ID != r.agentID {
			continue
		}
		r.respond(ctx, event, self, profiles, decision)
	}
}

func (r *Runtime) respond(ctx context.Context, event chat.Event, self config.AgentProfile, profiles []config.AgentProfile, decision trigger.Decision) {
	kind := TurnProactive
	switch {
	case event.Kind == chat.EventSummaryRequested:
		kind = TurnSummary
	case decision.MustRespond:
		kind = TurnMention
	}

	if err := r.room.SetComposing(ctx, r.agentID, true); err != nil {
		logger.DebugCF("runtime", "Composing on failed", map[string]interface{}{
			"agent_id": r.agentID,
			"error":    err.Error(),
		})
	}
	defer func() {
		_ = r.room.SetComposing(ctx, r.agentID, false)
	}()

	result, err := r.orchestrator.RunTurn(ctx, TurnRequest{
		Profile:  self,
		Profiles: profiles,
		RoomID:   event.RoomID,
		Trigger:  event.Message,
		Kind:     kind,
	})
	if err != nil {
		// Failures stay in the logs; raw error text never reaches the room.
		logger.ErrorCF("runtime", "Turn failed", map[string]interface{}{
			"agent_id": r.agentID,
			"kind":     kind,
			"error":    err.Error(),
		})
		return
	}
	if result.Declined || strings.TrimSpace(result.FinalText) == "" {
		logger.InfoCF("runtime", "Turn produced no post", map[string]interface{}{
			"agent_id": r.agentID,
			"turn_id":  result.TurnID,
			"declined": result.Declined,
		})
		return
	}

	post := chat.PostRequest{Text: result.FinalText}
	if kind == TurnMention && event.Message != nil {
		post.ReplyTo = event.Message.ID
	}
	if _, err := r.room.PostMessage(ctx, event.RoomID, post); err != nil {
		logger.ErrorCF("runtime", "Post failed", map[string]interface{}{
			"agent_id": r.agentID,
			"turn_id":  result.TurnID,
			"error":    err.Error(),
		})
		return
	}

	if kind == TurnProactive && self.CooldownSeconds > 0 {
		r.detector.Cooldowns().MarkResponded(r.agentID, event.RoomID, time.Now(),
			time.Duration(self.CooldownSeconds)*time.Second)
	}

	logger.InfoCF("runtime", "Posted response", map[string]interface{}{
		"agent_id":    r.agentID,
		"turn_id":     result.TurnID,
		"kind":        kind,
		"model_calls": result.ModelCalls,
		"room_id":     event.RoomID,
	})
}
