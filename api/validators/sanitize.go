package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}

// SanitizeBarcode drops whitespace and control characters. Keyboard-wedge
// scanners append CR/LF or tabs to each read.
func SanitizeBarcode(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return SanitizeString(cleaned, maxLen)
}
