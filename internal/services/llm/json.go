package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DecodeLLMJSON decodes JSON from a model response, handling common formatting quirks.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, SummarizeSnippet(trimmed, 160))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, SummarizeSnippet(sanitized, 160))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := StripCodeFence(content)
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

// StripCodeFence removes markdown code fences wrapped around or trailing a
// model response. Any language tag after the opening fence is dropped.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimLeft(trimmed[3:], " \t")
		if trimmed != "" && unicode.IsLetter(rune(trimmed[0])) {
			if end := strings.IndexFunc(trimmed, notFenceTag); end >= 0 {
				trimmed = trimmed[end:]
			} else {
				trimmed = ""
			}
		}
		trimmed = strings.TrimLeft(trimmed, " \t\r\n")
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = trimmed[:len(trimmed)-3]
	}
	return strings.TrimSpace(trimmed)
}

func notFenceTag(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		return false
	}
	return true
}

// SummarizeSnippet collapses whitespace and truncates content to limit runes for
// inclusion in error messages.
func SummarizeSnippet(content string, limit int) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
