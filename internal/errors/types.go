// Package errors defines the structured error type used across codepad and
// the failure taxonomy of the edit-preview loop: compilation, channel,
// persistence and audio failures are each a distinct ErrorType so callers can
// decide whether a failure is surfaced to the user or only logged.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeCompilation ErrorType = "compilation"
	ErrorTypeChannel     ErrorType = "channel"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeAudio       ErrorType = "audio"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
)

// CodepadError is a structured error type with context.
type CodepadError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *CodepadError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CodepadError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so a wrapped instance matches its sentinel.
func (e *CodepadError) Is(target error) bool {
	var t *CodepadError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *CodepadError) WithContext(key string, value interface{}) *CodepadError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// Wrap returns a copy of e carrying cause. Sentinels stay untouched.
func (e *CodepadError) Wrap(cause error) *CodepadError {
	cp := *e
	cp.Cause = cause
	if e.Context != nil {
		cp.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}

// Common error codes.
const (
	ErrCodeValidationFailed   = "ERR_VALIDATION_FAILED"
	ErrCodeUnknownBuffer      = "ERR_UNKNOWN_BUFFER"
	ErrCodeInvalidLibrary     = "ERR_INVALID_LIBRARY"
	ErrCodeCompileFailed      = "ERR_COMPILE_FAILED"
	ErrCodeChannelUnavailable = "ERR_CHANNEL_UNAVAILABLE"
	ErrCodeStaleContext       = "ERR_STALE_CONTEXT"
	ErrCodeNoProjects         = "ERR_NO_PROJECTS"
	ErrCodeStorage            = "ERR_STORAGE"
	ErrCodeExport             = "ERR_EXPORT"
	ErrCodeAudioUnavailable   = "ERR_AUDIO_UNAVAILABLE"
	ErrCodeEmptyScript        = "ERR_EMPTY_SCRIPT"
	ErrCodeAlreadyRunning     = "ERR_ALREADY_RUNNING"
	ErrCodeNotRunning         = "ERR_NOT_RUNNING"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternal           = "ERR_INTERNAL"
)

// Sentinels compared with errors.Is.
var (
	ErrUnknownBuffer      = NewValidationError(ErrCodeUnknownBuffer, "unknown buffer")
	ErrInvalidLibrary     = NewValidationError(ErrCodeInvalidLibrary, "invalid library url")
	ErrChannelUnavailable = NewChannelError(ErrCodeChannelUnavailable, "preview channel unavailable", nil)
	ErrStaleContext       = NewChannelError(ErrCodeStaleContext, "rendering context is not current", nil)
	ErrNoProjects         = NewPersistenceError(ErrCodeNoProjects, "no saved projects", nil)
	ErrAudioUnavailable   = NewAudioError(ErrCodeAudioUnavailable, "audio output unavailable", nil)
	ErrEmptyScript        = NewValidationError(ErrCodeEmptyScript, "auto-typing script is empty")
	ErrAlreadyRunning     = NewValidationError(ErrCodeAlreadyRunning, "auto-typing session already running")
	ErrNotRunning         = NewValidationError(ErrCodeNotRunning, "no auto-typing session running")
)

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewCompilationError creates a compilation error. Compilation errors never
// reach the user; the compiler degrades to passthrough.
func NewCompilationError(code, message string, cause error) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeCompilation,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewChannelError creates a preview channel error.
func NewChannelError(code, message string, cause error) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeChannel,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewPersistenceError creates a storage or export error.
func NewPersistenceError(code, message string, cause error) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypePersistence,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewAudioError creates an audio error.
func NewAudioError(code, message string, cause error) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeAudio,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CodepadError {
	return &CodepadError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// TypeOf returns the ErrorType of the first CodepadError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var ce *CodepadError
	if errors.As(err, &ce) {
		return ce.Type, true
	}
	return "", false
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ce *CodepadError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	return false
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsPersistence reports whether err is a storage or export failure.
func IsPersistence(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypePersistence
}

// Is and As re-export the standard library helpers so callers importing this
// package under its own name still have them.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// New is errors.New.
func New(text string) error { return errors.New(text) }
