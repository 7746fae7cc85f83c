package service

import (
	"strings"
	"unicode/utf8"
)

const (
	MinAppealLength = 10
	MaxAppealLength = 1000
)

// ValidateAppealText checks appeal text and returns the translation key of
// the first violated rule. Lengths are counted in characters.
func ValidateAppealText(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, "msg_appeal_empty"
	}

	if utf8.RuneCountInString(trimmed) < MinAppealLength {
		return false, "msg_appeal_too_short"
	}

	// upper bound applies to the raw text
	if utf8.RuneCountInString(text) > MaxAppealLength {
		return false, "msg_appeal_too_long"
	}

	return true, ""
}

// ValidationMessageArg returns the format argument for a validation key.
func ValidationMessageArg(key string) (int, bool) {
	switch key {
	case "msg_appeal_too_short":
		return MinAppealLength, true
	case "msg_appeal_too_long":
		return MaxAppealLength, true
	default:
		return 0, false
	}
}
