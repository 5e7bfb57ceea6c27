package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/roomfleet/pkg/config"
	"github.com/dotsetgreg/roomfleet/pkg/logger"
)

type remoteCaller interface {
	CallTool(ctx context.Context, baseURL, authHeader, name string, args map[string]interface{}) (string, error)
}

// Gateway routes a parsed tool call to a built-in capability by exact name,
// or to the agent's remote tool server when one is configured. An unresolved
// name is an error result, never a silent no-op.
type Gateway struct {
	registry *Registry
	remote   remoteCaller
}

func NewGateway(registry *Registry, remote remoteCaller) *Gateway {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Gateway{registry: registry, remote: remote}
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// EnabledSummaries lists the tools the profile may call, for prompt assembly.
func (g *Gateway) EnabledSummaries(profile config.AgentProfile) []string {
	var summaries []string
	for _, name := range g.registry.List() {
		if !toolEnabled(profile, name) || !capabilityAllows(profile, name) {
			continue
		}
		if tool, ok := g.registry.Get(name); ok {
			summaries = append(summaries, fmt.Sprintf("- `%s` - %s", tool.Name(), tool.Description()))
		}
	}
	return summaries
}

// Dispatch executes one tool call on behalf of profile. Failures of any kind
// come back as an error ToolResult so the round survives.
func (g *Gateway) Dispatch(ctx context.Context, profile config.AgentProfile, name string, args map[string]interface{}) *ToolResult {
	name = normalizeToolName(name)
	if name == "" {
		return ErrorResult("tool call without a name")
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	if _, ok := g.registry.Get(name); ok {
		if !toolEnabled(profile, name) {
			return ErrorResult(fmt.Sprintf("tool %q is not enabled for this agent", name)).WithName(name)
		}
		if !capabilityAllows(profile, name) {
			return ErrorResult(fmt.Sprintf("tool %q is not permitted by this agent's capabilities", name)).WithName(name)
		}
		return g.registry.Execute(ctx, name, args)
	}

	server := strings.TrimSpace(profile.RemoteToolServer)
	if server == "" {
		return ErrorResult(fmt.Sprintf("tool %q not found", name)).WithName(name)
	}
	if g.remote == nil {
		return ErrorResult("remote tool server configured but no connector available").WithName(name)
	}

	logger.InfoCF("tool", "Delegating to remote tool server", map[string]interface{}{
		"tool":     name,
		"agent_id": profile.ID,
		"server":   server,
	})
	result, err := g.remote.CallTool(ctx, server, profile.RemoteToolAuth, name, args)
	if err != nil {
		return ErrorResult(fmt.Sprintf("remote tool %q failed: %v", name, err)).WithName(name).WithError(err)
	}
	return TextResult(result).WithName(name)
}

// capabilityAllows maps built-ins onto profile capabilities. An empty
// enabled-tools list opens every tool, so the capability flags are the only
// guard left on reactions.
func capabilityAllows(profile config.AgentProfile, name string) bool {
	if name == "react_to_message" {
		return profile.Capabilities.CanReact
	}
	return true
}

func toolEnabled(profile config.AgentProfile, name string) bool {
	if len(profile.EnabledTools) == 0 {
		return true
	}
	for _, enabled := range profile.EnabledTools {
		if normalizeToolName(enabled) == name {
			return true
		}
	}
	return false
}

// normalizeToolName folds hyphenated and case variants onto the registered
// spelling. Models frequently emit react-to-message for react_to_message.
func normalizeToolName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")
	aliases := map[string]string{
		"websearch":                    "web_search",
		"search_web":                   "web_search",
		"keyword_web_search":           "web_search",
		"react":                        "react_to_message",
		"add_reaction":                 "react_to_message",
		"fetch_context_around_message": "fetch_context",
		"document_retrieval_query":     "retrieval_query",
		"retrieval":                    "retrieval_query",
	}
	if mapped, ok := aliases[name]; ok {
		return mapped
	}
	return name
}
