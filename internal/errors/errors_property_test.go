//go:build property

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCodepadErrorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	sentinels := []*CodepadError{
		ErrUnknownBuffer, ErrInvalidLibrary, ErrChannelUnavailable, ErrStaleContext,
		ErrNoProjects, ErrAudioUnavailable, ErrEmptyScript, ErrAlreadyRunning, ErrNotRunning,
	}

	properties.Property("wrapped sentinels match only themselves", prop.ForAll(
		func(i, j int, cause, prefix string) bool {
			wrapped := fmt.Errorf("%s: %w", prefix, sentinels[i].Wrap(errors.New(cause)))
			return errors.Is(wrapped, sentinels[i]) && errors.Is(wrapped, sentinels[j]) == (i == j)
		},
		gen.IntRange(0, len(sentinels)-1),
		gen.IntRange(0, len(sentinels)-1),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("wrap copies context", prop.ForAll(
		func(key, value string) bool {
			base := NewValidationError(ErrCodeValidationFailed, "base").WithContext("k", "v")
			w := base.Wrap(nil).WithContext(key, value)
			_, leaked := base.Context[key]
			return base.Context["k"] == "v" && w.Context[key] == value && (key == "k" || !leaked)
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("message carries code and cause", prop.ForAll(
		func(code, msg, cause string) bool {
			err := NewInternalError(code, msg, errors.New(cause))
			return err.Error() == fmt.Sprintf("[%s] %s: %s", code, msg, cause)
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
