// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

// Package respond parses raw model output into tool calls and final user
// text, in one of two wire formats selected by provider family.
package respond

import "strings"

type Format string

const (
	// FormatTagged uses inline [TOOLNAME:arg] markers.
	FormatTagged Format = "tagged"
	// FormatChannel segments output with <|channel|> markers into analysis,
	// commentary (tool calls), and final channels.
	FormatChannel Format = "channel"
)

// SkipSentinel is the literal a model emits to decline responding.
const SkipSentinel = "[[NO_RESPONSE]]"

type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
	RawSource string
}

// Parsed is the interpreted model output. Declined means the model emitted
// the skip sentinel, which is distinct from producing no output at all.
type Parsed struct {
	ToolCalls []ToolCall
	FinalText string
	Declined  bool
}

// Empty reports whether the response carried neither tool calls nor text.
func (p Parsed) Empty() bool {
	return !p.Declined && len(p.ToolCalls) == 0 && strings.TrimSpace(p.FinalText) == ""
}

// FormatForFamily maps a provider family to its output format. Families that
// emit channel-structured output get FormatChannel, everything else tagged.
func FormatForFamily(family string) Format {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "harmony", "gpt-oss", "openai-oss":
		return FormatChannel
	default:
		return FormatTagged
	}
}

// Parse interprets raw model output according to format.
func Parse(format Format, raw string) Parsed {
	if strings.Contains(raw, SkipSentinel) {
		return Parsed{Declined: true}
	}
	switch format {
	case FormatChannel:
		return parseChannel(raw)
	default:
		return parseTagged(raw)
	}
}
