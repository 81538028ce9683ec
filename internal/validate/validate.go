package validate

import (
	"fmt"
	"unicode/utf8"
)

// Text field length limits, counted in characters.
const (
	MaxTitleLength = 500
	MaxLineLength  = 5000
	MaxIDLength    = 128
)

func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string      { return checkLen(s, MaxTitleLength, "title") }
func Transcript(s string) string { return checkLen(s, MaxLineLength, "transcript") }
func Script(s string) string     { return checkLen(s, MaxLineLength, "script") }

// ID checks a document id. Ids end up in URL paths and blob keys, so
// slashes are rejected as well.
func ID(s string) string {
	if msg := checkLen(s, MaxIDLength, "id"); msg != "" {
		return msg
	}
	for _, r := range s {
		if r == '/' || r == '\\' || r < 0x20 {
			return "id must not contain slashes or control characters"
		}
	}
	return ""
}
