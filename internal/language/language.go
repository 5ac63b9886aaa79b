package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// names accepts English language names where operators write them instead
// of codes.
var names = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// ToISO2 converts a language code (ISO 639-1, ISO 639-2 or a BCP 47 tag such
// as en-US) or an English language name to ISO 639-1. It returns "" when the
// input is empty or not recognized.
func ToISO2(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if code, ok := names[value]; ok {
		return code
	}
	tag, err := xlang.Parse(value)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// DisplayName renders a code as an English name. Empty input yields
// "Unknown"; unrecognized input is returned upper-cased.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	if code := ToISO2(trimmed); code != "" {
		if name := display.English.Languages().Name(xlang.Make(code)); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}
