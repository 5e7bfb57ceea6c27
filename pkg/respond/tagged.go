package respond

import "strings"

// parseTagged extracts inline [TOOLNAME:arg] markers. The final text is the
// input with every marker removed.
func parseTagged(raw string) Parsed {
	var (
		calls []ToolCall
		text  strings.Builder
	)

	i := 0
	for i < len(raw) {
		open := strings.IndexByte(raw[i:], '[')
		if open < 0 {
			text.WriteString(raw[i:])
			break
		}
		open += i
		text.WriteString(raw[i:open])

		call, consumed := scanMarker(raw[open:])
		if consumed == 0 {
			text.WriteByte('[')
			i = open + 1
			continue
		}
		calls = append(calls, call)
		i = open + consumed
	}

	return Parsed{
		ToolCalls: calls,
		FinalText: strings.TrimSpace(text.String()),
	}
}

// scanMarker attempts to read one [NAME:arg] marker at the start of s, which
// begins with '['. It returns the call and the number of bytes consumed, or
// zero when s does not open a valid marker.
func scanMarker(s string) (ToolCall, int) {
	colon := -1
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			colon = i
			break
		}
		if !isToolNameChar(c) {
			return ToolCall{}, 0
		}
	}
	if colon <= 1 {
		return ToolCall{}, 0
	}
	name := strings.ToLower(s[1:colon])

	rest := s[colon+1:]
	trimmed := strings.TrimLeft(rest, " \t")
	pad := len(rest) - len(trimmed)

	// JSON-object arguments can contain ']' inside nested values, so the
	// object is scanned first and the closing bracket expected after it.
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		start, end := jsonSpan(trimmed)
		if start == 0 && end > 0 {
			after := strings.TrimLeft(trimmed[end:], " \t")
			if strings.HasPrefix(after, "]") {
				payload := trimmed[:end]
				consumed := colon + 1 + pad + end + (len(trimmed[end:]) - len(after)) + 1
				return ToolCall{
					Name:      name,
					Arguments: decodeArguments(payload),
					RawSource: s[:consumed],
				}, consumed
			}
		}
	}

	close := strings.IndexByte(rest, ']')
	if close < 0 {
		return ToolCall{}, 0
	}
	arg := strings.TrimSpace(rest[:close])
	consumed := colon + 1 + close + 1
	args := map[string]interface{}{}
	if arg != "" {
		args["input"] = arg
	}
	return ToolCall{
		Name:      name,
		Arguments: args,
		RawSource: s[:consumed],
	}, consumed
}

func isToolNameChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
