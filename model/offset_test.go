package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharOffset(t *testing.T) {
	text := "Wij woonden in België bij café Amsterdam."

	tests := []struct {
		name     string
		offset   int
		expected int
	}{
		{"Start of text", 0, 0},
		{"Before first multi byte character", 19, 19},
		{"After multi byte characters", 33, 31},
		{"End of text", len(text), 41},
		{"Negative is clamped", -1, 0},
		{"Beyond the text is clamped", len(text) + 5, 41},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CharOffset(text, tt.offset))
		})
	}
}

func TestByteOffset(t *testing.T) {
	text := "Wij woonden in België bij café Amsterdam."

	t.Run("Converts character offsets", func(t *testing.T) {
		start, ok := ByteOffset(text, 31)
		assert.True(t, ok)
		end, ok := ByteOffset(text, 40)
		assert.True(t, ok)
		assert.Equal(t, "Amsterdam", text[start:end])
	})

	t.Run("End of text is valid", func(t *testing.T) {
		offset, ok := ByteOffset(text, 41)
		assert.True(t, ok)
		assert.Equal(t, len(text), offset)
	})

	t.Run("Rejects offsets outside the text", func(t *testing.T) {
		_, ok := ByteOffset(text, 42)
		assert.False(t, ok)
		_, ok = ByteOffset(text, -1)
		assert.False(t, ok)
	})

	t.Run("Reverses CharOffset", func(t *testing.T) {
		for i := range text {
			offset, ok := ByteOffset(text, CharOffset(text, i))
			assert.True(t, ok)
			assert.Equal(t, i, offset)
		}
	})
}
