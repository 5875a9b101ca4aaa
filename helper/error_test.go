package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps error with step", func(t *testing.T) {
		base := errors.New("boom")
		err := NewError("insert interview", base)

		require.Error(t, err)
		assert.Equal(t, "insert interview: boom", err.Error())
		assert.ErrorIs(t, err, base)
	})

	t.Run("Nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("noop", nil))
	})

	t.Run("Taxonomy survives wrapping", func(t *testing.T) {
		err := NewError("project", IntegrityViolation("chunk %s not found", "id_transcription_9"))

		assert.ErrorIs(t, err, ErrIntegrityViolation)
		assert.NotErrorIs(t, err, ErrMalformedInput)
		assert.Contains(t, err.Error(), "id_transcription_9")
	})
}

func TestTaxonomyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"malformed", MalformedInput("region %s", "r1"), ErrMalformedInput},
		{"unresolved", UnresolvedReference("offset %d", 12), ErrUnresolvedReference},
		{"lookup", ExternalLookup("thesaurus", fmt.Errorf("status 502")), ErrExternalLookup},
		{"integrity", IntegrityViolation("span %d != %d", 3, 4), ErrIntegrityViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}
