package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Room     RoomConfig     `json:"room"`
	Provider ProviderConfig `json:"provider"`
	Fleet    FleetConfig    `json:"fleet"`
	Tools    ToolsConfig    `json:"tools"`
	Agents   []AgentProfile `json:"agents"`
	mu       sync.RWMutex
}

type RoomConfig struct {
	APIBase        string `json:"api_base" env:"ROOMFLEET_ROOM_API_BASE"`
	APIToken       string `json:"api_token" env:"ROOMFLEET_ROOM_API_TOKEN"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"ROOMFLEET_ROOM_TIMEOUT_SECONDS"`
}

type ProviderConfig struct {
	Family      string  `json:"family" env:"ROOMFLEET_PROVIDER_FAMILY"`
	APIKey      string  `json:"api_key" env:"ROOMFLEET_PROVIDER_API_KEY"`
	APIBase     string  `json:"api_base" env:"ROOMFLEET_PROVIDER_API_BASE"`
	Model       string  `json:"model" env:"ROOMFLEET_PROVIDER_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"ROOMFLEET_PROVIDER_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"ROOMFLEET_PROVIDER_TEMPERATURE"`
}

type FleetConfig struct {
	PollIntervalMS           int `json:"poll_interval_ms" env:"ROOMFLEET_FLEET_POLL_INTERVAL_MS"`
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds" env:"ROOMFLEET_FLEET_HEARTBEAT_INTERVAL_SECONDS"`
	ResyncIntervalSeconds    int `json:"resync_interval_seconds" env:"ROOMFLEET_FLEET_RESYNC_INTERVAL_SECONDS"`
	RoundCap                 int `json:"round_cap" env:"ROOMFLEET_FLEET_ROUND_CAP"`
	RoundTimeoutSeconds      int `json:"round_timeout_seconds" env:"ROOMFLEET_FLEET_ROUND_TIMEOUT_SECONDS"`
	LookaheadSeconds         int `json:"lookahead_seconds" env:"ROOMFLEET_FLEET_LOOKAHEAD_SECONDS"`
	ContextWindowSize        int `json:"context_window_size" env:"ROOMFLEET_FLEET_CONTEXT_WINDOW_SIZE"`
	LongContextCap           int `json:"long_context_cap" env:"ROOMFLEET_FLEET_LONG_CONTEXT_CAP"`
}

type ToolsConfig struct {
	WebSearch WebSearchConfig `json:"web_search"`
	Retrieval RetrievalConfig `json:"retrieval"`
}

type WebSearchConfig struct {
	Enabled    bool `json:"enabled" env:"ROOMFLEET_TOOLS_WEB_SEARCH_ENABLED"`
	MaxResults int  `json:"max_results" env:"ROOMFLEET_TOOLS_WEB_SEARCH_MAX_RESULTS"`
}

type RetrievalConfig struct {
	APIBase    string `json:"api_base" env:"ROOMFLEET_TOOLS_RETRIEVAL_API_BASE"`
	APIToken   string `json:"api_token" env:"ROOMFLEET_TOOLS_RETRIEVAL_API_TOKEN"`
	MaxResults int    `json:"max_results" env:"ROOMFLEET_TOOLS_RETRIEVAL_MAX_RESULTS"`
}

// AgentProfile describes one fleet member. Profiles are re-read from disk per
// trigger so operators can edit them without restarting the fleet.
type AgentProfile struct {
	ID               string       `json:"id"`
	DisplayName      string       `json:"display_name"`
	Active           bool         `json:"active"`
	SystemPrompt     string       `json:"system_prompt"`
	Capabilities     Capabilities `json:"capabilities"`
	Model            ModelConfig  `json:"model"`
	EnabledTools     []string     `json:"enabled_tools"`
	RemoteToolServer string       `json:"remote_tool_server,omitempty"`
	RemoteToolAuth   string       `json:"remote_tool_auth,omitempty"`
	CooldownSeconds  int          `json:"cooldown_seconds"`
}

type Capabilities struct {
	AnswerOnMention   bool `json:"answer_on_mention"`
	AnswerProactively bool `json:"answer_proactively"`
	CanReact          bool `json:"can_react"`
	CanSummarize      bool `json:"can_summarize"`
}

type ModelConfig struct {
	Family      string  `json:"family,omitempty"`
	Name        string  `json:"name,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Room: RoomConfig{
			APIBase:        "http://localhost:18800",
			TimeoutSeconds: 15,
		},
		Provider: ProviderConfig{
			Family:      "openai",
			APIBase:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-5.2",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Fleet: FleetConfig{
			PollIntervalMS:           1000,
			HeartbeatIntervalSeconds: 5,
			ResyncIntervalSeconds:    30,
			RoundCap:                 2,
			RoundTimeoutSeconds:      60,
			LookaheadSeconds:         4,
			ContextWindowSize:        10,
			LongContextCap:           200,
		},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{
				Enabled:    true,
				MaxResults: 5,
			},
			Retrieval: RetrievalConfig{
				MaxResults: 5,
			},
		},
		Agents: []AgentProfile{},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if strings.TrimSpace(c.Room.APIBase) == "" {
		return fmt.Errorf("room.api_base is required")
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return fmt.Errorf("provider.api_key is required (or ROOMFLEET_PROVIDER_API_KEY)")
	}
	seen := map[string]struct{}{}
	for _, agent := range c.Agents {
		id := strings.TrimSpace(agent.ID)
		if id == "" {
			return fmt.Errorf("agent profile without id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate agent id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Profile returns the profile for id, if configured.
func (c *Config) Profile(id string) (AgentProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, agent := range c.Agents {
		if agent.ID == id {
			return agent, true
		}
	}
	return AgentProfile{}, false
}
