package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
	reMultiSpace   = regexp.MustCompile(`\s+`)
	reNameChars    = regexp.MustCompile(`[^\p{L}\p{N}\s'\-]+`)
)

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}

func stripControl(s string) string {
	return reControlChars.ReplaceAllString(s, " ")
}

func collapseSpaces(s string) string {
	return reMultiSpace.ReplaceAllString(s, " ")
}

// SanitizeName cleans a guest name: control characters and anything outside
// letters, digits, spaces, hyphens and apostrophes is dropped.
func SanitizeName(input string) string {
	p := Pipeline{
		stripControl,
		func(s string) string { return reNameChars.ReplaceAllString(s, "") },
		collapseSpaces,
		trimSpace,
	}
	return p.Apply(input)
}

// SanitizeFreeText cleans a notes or reason field and truncates it to maxLen.
// Truncation respects rune boundaries.
func SanitizeFreeText(input string, maxLen int) string {
	p := Pipeline{
		stripControl,
		collapseSpaces,
		trimSpace,
	}
	s := p.Apply(input)
	runes := []rune(s)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
