package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodepadErrorMessage(t *testing.T) {
	err := NewPersistenceError(ErrCodeStorage, "write project list", errors.New("disk full"))
	assert.Equal(t, "[ERR_STORAGE] write project list: disk full", err.Error())

	bare := &CodepadError{Message: "plain"}
	assert.Equal(t, "plain", bare.Error())
}

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", ErrNoProjects.Wrap(errors.New("empty list")))

	assert.True(t, errors.Is(wrapped, ErrNoProjects))
	assert.False(t, errors.Is(wrapped, ErrChannelUnavailable))
	assert.True(t, IsPersistence(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestWrapLeavesSentinelUntouched(t *testing.T) {
	cause := errors.New("cause")
	w := ErrEmptyScript.Wrap(cause)

	assert.Nil(t, ErrEmptyScript.Cause)
	assert.Equal(t, cause, w.Cause)
	assert.ErrorIs(t, w, cause)
}

func TestTypeOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected ErrorType
		ok       bool
	}{
		{"compilation", NewCompilationError(ErrCodeCompileFailed, "scss", nil), ErrorTypeCompilation, true},
		{"channel", ErrChannelUnavailable, ErrorTypeChannel, true},
		{"audio", NewAudioError(ErrCodeAudioUnavailable, "no device", nil), ErrorTypeAudio, true},
		{"config", NewConfigError(ErrCodeConfigInvalid, "bad port"), ErrorTypeConfig, true},
		{"plain", errors.New("plain"), "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			typ, ok := TypeOf(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, typ)
		})
	}
}

func TestRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrAudioUnavailable))
	assert.False(t, IsRecoverable(NewInternalError(ErrCodeInternal, "x", nil)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidLibrary, "bad url").WithContext("url", "ftp://x")
	require.NotNil(t, err.Context)
	assert.Equal(t, "ftp://x", err.Context["url"])
}
