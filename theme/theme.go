// Package theme defines the color palette and small text helpers shared by
// all status line modules.
package theme

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Color is a 24 bit RGB color used in bar markup.
type Color uint32

const (
	Foreground Color = 0x93a1a1
	MainIcon   Color = 0xeee8d5
	Focused    Color = 0x2aa198
	Unfocused  Color = 0x657b83
	Good       Color = 0x859900
	Notice     Color = 0xb58900
	Attention  Color = 0xcb4b16
	Critical   Color = 0xdc322f
)

// Icons used by modules for degraded and unavailable states.
const (
	IconWarning     = "⚠"
	IconUnavailable = "✗"
)

// Ellipsis truncates s to at most maxLen runes, appending … when content was
// dropped. Trailing spaces are trimmed before truncating. A maxLen of zero or
// less disables truncation.
func Ellipsis(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	trimmed := strings.TrimRight(s, " ")
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen-1]) + "…"
}

// ShortenModelName compresses a device model name (mouse, headset...) to a
// compact form, preferring the word that carries the model number.
func ShortenModelName(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-'
	})

	for _, w := range words {
		first, _ := utf8.DecodeRuneInString(w)
		if isASCIILetter(first) && strings.ContainsFunc(w, unicode.IsDigit) {
			return w
		}
	}

	var b strings.Builder
	for _, w := range words {
		switch {
		case isAllUpper(w):
			b.WriteString(w)
		case !startsWithDigit(w):
			r, _ := utf8.DecodeRuneInString(w)
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isAllUpper(w string) bool {
	for _, r := range w {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return w != ""
}

func startsWithDigit(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsDigit(r)
}
