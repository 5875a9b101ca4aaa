package model

import "unicode/utf8"

// CharOffset returns the character offset of the byte offset b in text.
// Offsets outside the text are clamped.
func CharOffset(text string, b int) int {
	if b <= 0 {
		return 0
	}
	if b > len(text) {
		b = len(text)
	}
	return utf8.RuneCountInString(text[:b])
}

// ByteOffset returns the byte offset of the character offset c in text.
// It reports false when c is negative or beyond the end of text.
func ByteOffset(text string, c int) (int, bool) {
	if c < 0 {
		return 0, false
	}
	n := 0
	for i := range text {
		if n == c {
			return i, true
		}
		n++
	}
	if n == c {
		return len(text), true
	}
	return 0, false
}
