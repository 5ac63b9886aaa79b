package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes name safe as a single path element. Separators,
// colons and asterisks become dashes; quotes, wildcards, redirections and
// control characters are dropped.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			return '-'
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "." || cleaned == ".." {
		return ""
	}
	return cleaned
}

// SanitizeToken lower-cases value and reduces it to [a-z0-9_-], replacing
// every other rune with an underscore. Blank results become "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	token = strings.Trim(token, "_-")
	if token == "" {
		return "unknown"
	}
	return token
}
