package config

import (
	"sync"
	"time"

	"github.com/dotsetgreg/roomfleet/pkg/logger"
)

// Store hands out agent profiles, re-reading the config file so that edits
// made while the fleet is running take effect on the next trigger.
type Store struct {
	path    string
	mu      sync.RWMutex
	current *Config
	loaded  time.Time
}

func NewStore(path string, initial *Config) *Store {
	return &Store{
		path:    path,
		current: initial,
		loaded:  time.Now(),
	}
}

// ActiveProfiles returns the profiles marked active in the freshest readable
// copy of the config file. A file that has gone missing or unparseable keeps
// the last good snapshot.
func (s *Store) ActiveProfiles() []AgentProfile {
	cfg := s.refresh()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var active []AgentProfile
	for _, agent := range cfg.Agents {
		if agent.Active {
			active = append(active, agent)
		}
	}
	return active
}

// Path returns the config file path backing this store.
func (s *Store) Path() string {
	return s.path
}

// Current returns the latest loaded config snapshot.
func (s *Store) Current() *Config {
	return s.refresh()
}

func (s *Store) refresh() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return s.current
	}

	cfg, err := LoadConfig(s.path)
	if err != nil {
		logger.WarnCF("config", "reload failed, keeping previous snapshot", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return s.current
	}
	s.current = cfg
	s.loaded = time.Now()
	return s.current
}
