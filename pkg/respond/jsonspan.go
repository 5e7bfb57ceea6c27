package respond

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// jsonSpan locates the first top-level JSON object or array in s, returning
// start and end+1 indexes, or (-1, -1). The scan is brace-depth and string
// aware so nested payloads like {"filter":{"min":1}} survive intact.
func jsonSpan(s string) (int, int) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return -1, -1
	}

	openChar := s[start]
	var closeChar byte
	if openChar == '{' {
		closeChar = '}'
	} else {
		closeChar = ']'
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// decodeArguments parses a tool-call payload. Malformed JSON gets one repair
// attempt; a payload that still won't decode is preserved under the raw key
// instead of dropping the call.
func decodeArguments(payload string) map[string]interface{} {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return map[string]interface{}{}
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &args); err == nil {
		return args
	}

	if repaired, err := jsonrepair.JSONRepair(payload); err == nil {
		if err := json.Unmarshal([]byte(repaired), &args); err == nil && args != nil {
			return args
		}
	}

	return map[string]interface{}{"raw": payload}
}
