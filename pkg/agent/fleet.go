// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
)

// Worker is a long-running per-agent task supervised by the Fleet.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFactory builds the worker for one agent profile.
type WorkerFactory func(profile config.AgentProfile) Worker

// Fleet supervises one worker per active agent: it recovers panics, restarts
// workers that exit with an error, and re-syncs the active agent set against
// the config store so agents can be added or removed while running.
type Fleet struct {
	store          *config.Store
	factory        WorkerFactory
	resyncInterval time.Duration
	restartBackoff time.Duration

	mu      sync.Mutex
	workers map[string]*supervised
}

type supervised struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFleet(store *config.Store, factory WorkerFactory, resyncInterval, restartBackoff time.Duration) *Fleet {
	if resyncInterval <= 0 {
		resyncInterval = 30 * time.Second
	}
	if restartBackoff <= 0 {
		restartBackoff = 2 * time.Second
	}
	return &Fleet{
		store:          store,
		factory:        factory,
		resyncInterval: resyncInterval,
		restartBackoff: restartBackoff,
		workers:        map[string]*supervised{},
	}
}

// Run blocks until ctx is cancelled, keeping workers in sync with the active
// profile set.
func (f *Fleet) Run(ctx context.Context) error {
	f.sync(ctx)

	ticker := time.NewTicker(f.resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.stopAll()
			return ctx.Err()
		case <-ticker.C:
			f.sync(ctx)
		}
	}
}

func (f *Fleet) sync(ctx context.Context) {
	active := f.store.ActiveProfiles()
	wanted := make(map[string]config.AgentProfile, len(active))
	for _, profile := range active {
		wanted[profile.ID] = profile
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, worker := range f.workers {
		if _, keep := wanted[id]; keep {
			continue
		}
		logger.InfoCF("fleet", "Stopping removed agent", map[string]interface{}{
			"agent_id": id,
		})
		worker.cancel()
		delete(f.workers, id)
	}

	for id, profile := range wanted {
		if _, running := f.workers[id]; running {
			continue
		}
		f.startLocked(ctx, profile)
	}
}

func (f *Fleet) startLocked(ctx context.Context, profile config.AgentProfile) {
	workerCtx, cancel := context.WithCancel(ctx)
	entry := &supervised{cancel: cancel, done: make(chan struct{})}
	f.workers[profile.ID] = entry

	logger.InfoCF("fleet", "Starting agent", map[string]interface{}{
		"agent_id":     profile.ID,
		"display_name": profile.DisplayName,
	})

	go func() {
		defer close(entry.done)
		f.supervise(workerCtx, profile)
	}()
}

// supervise keeps one worker alive: panics are recovered and error exits
// restarted after a backoff. A clean context cancellation ends supervision.
func (f *Fleet) supervise(ctx context.Context, profile config.AgentProfile) {
	for {
		err := runSafely(ctx, f.factory(profile))
		if ctx.Err() != nil {
			return
		}
		logger.ErrorCF("fleet", "Agent worker exited, restarting", map[string]interface{}{
			"agent_id": profile.ID,
			"error":    fmt.Sprintf("%v", err),
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.restartBackoff):
		}
	}
}

func runSafely(ctx context.Context, worker Worker) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker panicked: %v", rec)
		}
	}()
	return worker.Run(ctx)
}

func (f *Fleet) stopAll() {
	f.mu.Lock()
	entries := make([]*supervised, 0, len(f.workers))
	for _, worker := range f.workers {
		worker.cancel()
		entries = append(entries, worker)
	}
	f.workers = map[string]*supervised{}
	f.mu.Unlock()

	for _, worker := range entries {
		<-worker.done
	}
}

// Running returns the ids of currently supervised agents.
func (f *Fleet) Running() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.workers))
	for id := range f.workers {
		ids = append(ids, id)
	}
	return ids
}
