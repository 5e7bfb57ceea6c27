// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/roomfleet/pkg/agent"
	"github.com/dotsetgreg/roomfleet/pkg/chat"
	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/connectors"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
	"github.com/dotsetgreg/roomfleet/pkg/providers"
	"github.com/dotsetgreg/roomfleet/pkg/tools"
	"github.com/dotsetgreg/roomfleet/pkg/trigger"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "roomfleet"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	if path := strings.TrimSpace(os.Getenv("ROOMFLEET_CONFIG")); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".roomfleet", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func validateRuntimeConfig(cfg *config.Config, requireRoom bool) error {
	configPath := getConfigPath()
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return fmt.Errorf("provider.api_key is required in %s or ROOMFLEET_PROVIDER_API_KEY", configPath)
	}
	if requireRoom && strings.TrimSpace(cfg.Room.APIBase) == "" {
		return fmt.Errorf("room.api_base is required in %s or ROOMFLEET_ROOM_API_BASE", configPath)
	}
	return nil
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.Agents = []config.AgentProfile{
		{
			ID:          "helper-1",
			DisplayName: "Helper",
			Active:      true,
			Capabilities: config.Capabilities{
				AnswerOnMention: true,
				CanReact:        true,
				CanSummarize:    true,
			},
			CooldownSeconds: 30,
		},
	}
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("  2. Point room.api_base at your chat room server")
	fmt.Println("  3. Chat locally: roomfleet ask -m \"Hello!\"")
	fmt.Println("  4. Run the fleet: roomfleet run")
	fmt.Println("  5. Check readiness: roomfleet status")
	return nil
}

// buildRegistry wires the built-in tools enabled by the config against the
// given room backend.
func buildRegistry(cfg *config.Config, room historyRoom) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewReactTool(room))
	registry.Register(tools.NewFetchContextTool(room))
	registry.Register(tools.NewFetchLongContextTool(room, cfg.Fleet.LongContextCap))
	if cfg.Tools.WebSearch.Enabled {
		registry.Register(tools.NewWebSearchTool(nil, cfg.Tools.WebSearch.MaxResults))
	}
	if strings.TrimSpace(cfg.Tools.Retrieval.APIBase) != "" {
		registry.Register(tools.NewRetrievalTool(
			cfg.Tools.Retrieval.APIBase,
			cfg.Tools.Retrieval.APIToken,
			cfg.Tools.Retrieval.MaxResults,
		))
	}
	return registry
}

type historyRoom interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]chat.Message, error)
	Roster(ctx context.Context, roomID string) ([]chat.Participant, error)
	AddReaction(ctx context.Context, messageID, emoji string) error
}

func runFleet(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, true); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	room, err := chat.NewClient(cfg.Room.APIBase, cfg.Room.APIToken, cfg.Room.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("room client: %w", err)
	}
	provider, err := providers.New(cfg.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	store := config.NewStore(getConfigPath(), cfg)
	registry := buildRegistry(cfg, room)
	gateway := tools.NewGateway(registry, connectors.NewNegotiator())
	builder := agent.NewContextBuilder(room, cfg.Fleet.ContextWindowSize, cfg.Fleet.LongContextCap)
	orchestrator := agent.NewOrchestrator(provider, gateway, builder, cfg.Provider.Family,
		cfg.Fleet.RoundCap, time.Duration(cfg.Fleet.RoundTimeoutSeconds)*time.Second)
	detector := trigger.NewDetector(trigger.NewCooldowns(),
		time.Duration(cfg.Fleet.LookaheadSeconds)*time.Second)

	factory := func(profile config.AgentProfile) agent.Worker {
		return agent.NewRuntime(profile.ID, store, room, detector, orchestrator,
			time.Duration(cfg.Fleet.PollIntervalMS)*time.Millisecond,
			time.Duration(cfg.Fleet.HeartbeatIntervalSeconds)*time.Second)
	}
	fleet := agent.NewFleet(store, factory,
		time.Duration(cfg.Fleet.ResyncIntervalSeconds)*time.Second, 0)

	active := store.ActiveProfiles()
	names := make([]string, 0, len(active))
	for _, profile := range active {
		names = append(names, profile.DisplayName)
	}
	fmt.Printf("Fleet starting with %d active agents: %s\n", len(active), strings.Join(names, ", "))
	fmt.Printf("Built-in tools loaded: %d\n", registry.Count())
	fmt.Println("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := fleet.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	fmt.Println("Fleet stopped")
	return nil
}

func statusCmd() error {
	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "OK")
	} else {
		fmt.Println("Config:", configPath, "missing (run: roomfleet onboard)")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mark := func(ok bool) string {
		if ok {
			return "OK"
		}
		return "not set"
	}
	apiReady := strings.TrimSpace(cfg.Provider.APIKey) != ""
	roomReady := strings.TrimSpace(cfg.Room.APIBase) != ""

	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Println("Provider API key:", mark(apiReady))
	fmt.Println("Room API:", mark(roomReady))
	fmt.Println("Web search:", mark(cfg.Tools.WebSearch.Enabled))
	fmt.Println("Retrieval:", mark(strings.TrimSpace(cfg.Tools.Retrieval.APIBase) != ""))
	fmt.Println()

	active := 0
	for _, profile := range cfg.Agents {
		state := "inactive"
		if profile.Active {
			state = "active"
			active++
		}
		fmt.Printf("  %s (%s): %s\n", profile.DisplayName, profile.ID, state)
	}
	fmt.Printf("Agents: %d configured, %d active\n", len(cfg.Agents), active)
	fmt.Println("Fleet ready:", mark(apiReady && roomReady && active > 0))
	return nil
}

// cliRoom is an in-memory room backing local ask sessions. The transcript of
// the session is the room history, so context assembly and the history tools
// work without a server.
type cliRoom struct {
	mu       sync.Mutex
	messages []chat.Message
	roster   []chat.Participant
	nextID   int
}

func newCLIRoom(profile config.AgentProfile) *cliRoom {
	return &cliRoom{
		roster: []chat.Participant{
			{ID: "you", DisplayName: "You", Kind: chat.KindHuman},
			{ID: profile.ID, DisplayName: profile.DisplayName, Kind: chat.KindAgent},
		},
	}
}

func (r *cliRoom) append(senderID, text string, mentions []string) chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg := chat.Message{
		ID:        fmt.Sprintf("cli-%d", r.nextID),
		RoomID:    "cli",
		SenderID:  senderID,
		Text:      text,
		Mentions:  mentions,
		CreatedAt: time.Now(),
	}
	r.messages = append(r.messages, msg)
	return msg
}

func (r *cliRoom) RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > 0 && limit < len(r.messages) {
		return append([]chat.Message(nil), r.messages[len(r.messages)-limit:]...), nil
	}
	return append([]chat.Message(nil), r.messages...), nil
}

func (r *cliRoom) MessagesAround(ctx context.Context, roomID, messageID string, before, after int) ([]chat.Message, error) {
	return r.RecentMessages(ctx, roomID, 0)
}

func (r *cliRoom) Roster(ctx context.Context, roomID string) ([]chat.Participant, error) {
	return r.roster, nil
}

func (r *cliRoom) AddReaction(ctx context.Context, messageID, emoji string) error {
	fmt.Printf("  (reaction %s on %s)\n", emoji, messageID)
	return nil
}

func askCmd(agentID, message string, debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, false); err != nil {
		return err
	}

	profile, profiles, err := pickProfile(cfg, agentID)
	if err != nil {
		return err
	}

	provider, err := providers.New(cfg.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	room := newCLIRoom(profile)
	gateway := tools.NewGateway(buildRegistry(cfg, room), connectors.NewNegotiator())
	builder := agent.NewContextBuilder(room, cfg.Fleet.ContextWindowSize, cfg.Fleet.LongContextCap)
	orchestrator := agent.NewOrchestrator(provider, gateway, builder, cfg.Provider.Family,
		cfg.Fleet.RoundCap, time.Duration(cfg.Fleet.RoundTimeoutSeconds)*time.Second)

	if strings.TrimSpace(message) != "" {
		reply, err := runAskTurn(orchestrator, room, profile, profiles, message)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s %s\n", profile.DisplayName, reply)
		return nil
	}

	fmt.Printf("%s Interactive mode with %s (Ctrl+C to exit)\n\n", appName, profile.DisplayName)
	interactiveMode(orchestrator, room, profile, profiles)
	return nil
}

func pickProfile(cfg *config.Config, agentID string) (config.AgentProfile, []config.AgentProfile, error) {
	if strings.TrimSpace(agentID) != "" {
		profile, ok := cfg.Profile(agentID)
		if !ok {
			return config.AgentProfile{}, nil, fmt.Errorf("no agent profile with id %q", agentID)
		}
		return profile, cfg.Agents, nil
	}
	for _, profile := range cfg.Agents {
		if profile.Active {
			return profile, cfg.Agents, nil
		}
	}
	return config.AgentProfile{}, nil, fmt.Errorf("no active agent profiles in %s", getConfigPath())
}

func runAskTurn(orchestrator *agent.Orchestrator, room *cliRoom, profile config.AgentProfile, profiles []config.AgentProfile, input string) (string, error) {
	msg := room.append("you", input, []string{profile.ID})

	result, err := orchestrator.RunTurn(context.Background(), agent.TurnRequest{
		Profile:  profile,
		Profiles: profiles,
		RoomID:   "cli",
		Trigger:  &msg,
		Kind:     agent.TurnMention,
	})
	if err != nil {
		return "", err
	}
	if result.Declined || strings.TrimSpace(result.FinalText) == "" {
		return "(no response)", nil
	}
	room.append(profile.ID, result.FinalText, nil)
	return result.FinalText, nil
}

func interactiveMode(orchestrator *agent.Orchestrator, room *cliRoom, profile config.AgentProfile, profiles []config.AgentProfile) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".roomfleet_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(orchestrator, room, profile, profiles)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		reply, err := runAskTurn(orchestrator, room, profile, profiles, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s %s\n\n", profile.DisplayName, reply)
	}
}

func simpleInteractiveMode(orchestrator *agent.Orchestrator, room *cliRoom, profile config.AgentProfile, profiles []config.AgentProfile) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		reply, err := runAskTurn(orchestrator, room, profile, profiles, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s %s\n\n", profile.DisplayName, reply)
	}
}
