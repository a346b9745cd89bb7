package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation(t *testing.T) {
	var v Validation
	require.NoError(t, v.Err())
	assert.False(t, v.HasErrors())

	v.Add(CodeValidation, "name is required")
	v.Add(CodeInvalidOperation, "clientId already in use")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, v.HasErrors())
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, "VALIDATION_ERROR: name is required; INVALID_OPERATION: clientId already in use", err.Error())

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Entries, 2)
	assert.True(t, appErr.Has(CodeInvalidOperation))
	assert.False(t, appErr.Has(CodeNotFound))
}

func TestCodeOf(t *testing.T) {
	sentinel := New(CodeInvalidOperation, "bad transition")

	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeUnexpected, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeInvalidOperation, CodeOf(sentinel))
	assert.Equal(t, CodeInvalidOperation, CodeOf(fmt.Errorf("%w: SENT -> COMPLETED", sentinel)))
}

func TestEntries(t *testing.T) {
	t.Run("app error keeps every entry", func(t *testing.T) {
		var v Validation
		v.Add(CodeValidation, "a")
		v.Add(CodeNotFound, "b")
		assert.Len(t, Entries(v.Err()), 2)
	})

	t.Run("wrapped error keeps full message", func(t *testing.T) {
		err := fmt.Errorf("%w: CREATED -> ACKNOWLEDGED", New(CodeInvalidOperation, "invalid transition"))
		entries := Entries(err)
		require.Len(t, entries, 1)
		assert.Equal(t, CodeInvalidOperation, entries[0].Code)
		assert.Contains(t, entries[0].Message, "CREATED -> ACKNOWLEDGED")
	})

	t.Run("plain error is unexpected", func(t *testing.T) {
		entries := Entries(errors.New("db down"))
		require.Len(t, entries, 1)
		assert.Equal(t, CodeUnexpected, entries[0].Code)
	})
}
