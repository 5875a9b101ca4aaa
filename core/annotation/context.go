package annotation

import (
	"regexp"
	"strings"
)

// DefaultContextLength is the minimum number of bytes looked at on each side of a quote.
const DefaultContextLength = 30

// maxContextTokens caps the number of tokens kept in a prefix or suffix.
const maxContextTokens = 10

var (
	prefixToken = regexp.MustCompile(`\S+\s*`)
	suffixToken = regexp.MustCompile(`\s*\S+`)
)

// QuoteContext is the quoted span of a text together with its surrounding text.
type QuoteContext struct {
	Prefix string
	Exact  string
	Suffix string
}

// ExtractContext returns the text quote for text[start:end] with a prefix and suffix
// of whole tokens taken from windows of 2*contextLength bytes around the span.
// A token cut by a window edge is dropped unless the window reaches the text boundary.
// Out of range spans are clamped to the text.
func ExtractContext(text string, start int, end int, contextLength int) QuoteContext {
	start = clamp(start, 0, len(text))
	end = clamp(end, start, len(text))
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}
	window := 2 * contextLength

	prefixStart := max(0, start-window)
	prefixTokens := prefixToken.FindAllString(text[prefixStart:start], -1)
	if prefixStart > 0 && len(prefixTokens) > 0 {
		prefixTokens = prefixTokens[1:]
	}
	if len(prefixTokens) > maxContextTokens {
		prefixTokens = prefixTokens[len(prefixTokens)-maxContextTokens:]
	}

	suffixEnd := min(len(text), end+window)
	suffixTokens := suffixToken.FindAllString(text[end:suffixEnd], -1)
	if suffixEnd < len(text) && len(suffixTokens) > 0 {
		suffixTokens = suffixTokens[:len(suffixTokens)-1]
	}
	if len(suffixTokens) > maxContextTokens {
		suffixTokens = suffixTokens[:maxContextTokens]
	}

	return QuoteContext{
		Prefix: strings.Join(prefixTokens, ""),
		Exact:  text[start:end],
		Suffix: strings.Join(suffixTokens, ""),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
