package respond

import "strings"

const (
	markerChannel = "<|channel|>"
	markerMessage = "<|message|>"
	markerEnd     = "<|end|>"
)

// parseChannel walks <|channel|>header<|message|>body<|end|> segments.
// Analysis bodies are discarded, commentary segments become tool calls, and
// final segments are joined into the user-visible text. A trailing segment
// without <|end|> runs to the next channel marker or end of input.
func parseChannel(raw string) Parsed {
	var (
		calls  []ToolCall
		finals []string
	)

	rest := raw
	for {
		start := strings.Index(rest, markerChannel)
		if start < 0 {
			break
		}
		rest = rest[start+len(markerChannel):]

		msgIdx := strings.Index(rest, markerMessage)
		nextIdx := strings.Index(rest, markerChannel)
		if msgIdx < 0 || (nextIdx >= 0 && nextIdx < msgIdx) {
			continue
		}
		header := strings.TrimSpace(rest[:msgIdx])
		rest = rest[msgIdx+len(markerMessage):]

		body := rest
		if endIdx := strings.Index(rest, markerEnd); endIdx >= 0 &&
			(strings.Index(rest, markerChannel) < 0 || endIdx < strings.Index(rest, markerChannel)) {
			body = rest[:endIdx]
			rest = rest[endIdx+len(markerEnd):]
		} else if chIdx := strings.Index(rest, markerChannel); chIdx >= 0 {
			body = rest[:chIdx]
			rest = rest[chIdx:]
		} else {
			rest = ""
		}

		kind, target := splitHeader(header)
		switch kind {
		case "analysis":
			// Reasoning channel, never surfaced.
		case "commentary":
			if call, ok := commentaryCall(target, body); ok {
				calls = append(calls, call)
			}
		case "final":
			if text := strings.TrimSpace(body); text != "" {
				finals = append(finals, text)
			}
		}
	}

	return Parsed{
		ToolCalls: calls,
		FinalText: strings.Join(finals, "\n"),
	}
}

// splitHeader separates the channel kind from a "to=<tool>" directive.
func splitHeader(header string) (kind, target string) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return "", ""
	}
	kind = strings.ToLower(fields[0])
	for _, field := range fields[1:] {
		if value, ok := strings.CutPrefix(field, "to="); ok {
			target = strings.TrimSpace(value)
		}
	}
	return kind, target
}

func commentaryCall(target, body string) (ToolCall, bool) {
	name := strings.ToLower(strings.TrimSpace(target))
	if name == "" {
		return ToolCall{}, false
	}

	payload := strings.TrimSpace(body)
	if start, end := jsonSpan(payload); start >= 0 {
		payload = payload[start:end]
	}
	return ToolCall{
		Name:      name,
		Arguments: decodeArguments(payload),
		RawSource: body,
	}, true
}
