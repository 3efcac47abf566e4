// Package sound synthesizes the short keystroke cues played while editing
// and auto-typing. Cues are rendered as WAV clips and handed to an Output;
// the Output is acquired lazily once and a failure to acquire or play it
// silences the unit for the rest of the process.
package sound

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
)

// Clip is one rendered cue.
type Clip struct {
	Kind       Kind
	SampleRate int
	WAV        []byte
}

// Output plays clips. Play must not block on the listener.
type Output interface {
	Play(ctx context.Context, clip Clip) error
}

// Opener acquires the shared Output.
type Opener func() (Output, error)

// Settings are the user-facing sound preferences.
type Settings struct {
	Kind   Kind    `json:"soundType" mapstructure:"type"`
	Volume float64 `json:"soundVolume" mapstructure:"volume"`
	Muted  bool    `json:"soundMuted" mapstructure:"muted"`
}

// DefaultSettings returns the mechanical preset at 0.3 volume.
func DefaultSettings() Settings {
	return Settings{Kind: KindMechanical, Volume: 0.3}
}

// Unit plays cues with the current settings.
type Unit struct {
	mu         sync.Mutex
	opener     Opener
	out        Output
	acquired   bool
	failed     bool
	settings   Settings
	sampleRate int
	jitter     func() float64
	logger     logging.Logger
}

// DefaultSampleRate is used when none is configured.
const DefaultSampleRate = 22050

// NewUnit creates a unit. The output is not opened until the first audible
// cue.
func NewUnit(opener Opener, settings Settings, sampleRate int, logger logging.Logger) *Unit {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if settings.Kind == "" {
		settings.Kind = KindMechanical
	}
	return &Unit{
		opener:     opener,
		settings:   settings,
		sampleRate: sampleRate,
		jitter:     rand.Float64,
		logger:     logger.WithComponent("sound"),
	}
}

// Configure replaces the settings used by Cue.
func (u *Unit) Configure(s Settings) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if s.Kind == "" {
		s.Kind = u.settings.Kind
	}
	u.settings = s
}

// Settings returns the current settings.
func (u *Unit) Settings() Settings {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.settings
}

// Cue plays one cue with the configured kind and volume.
func (u *Unit) Cue(ctx context.Context) bool {
	s := u.Settings()
	return u.Play(ctx, s.Kind, s.Volume)
}

// Play synthesizes and plays a cue. It reports whether a clip was handed to
// the output; it is a no-op when muted, at volume zero, after an audio
// failure, or for an unknown kind.
func (u *Unit) Play(ctx context.Context, k Kind, volume float64) bool {
	if volume <= 0 {
		return false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.failed || u.settings.Muted {
		return false
	}
	if !u.acquired {
		u.acquired = true
		if err := u.acquireLocked(); err != nil {
			u.failed = true
			u.logger.Warn(ctx, err, "Audio output unavailable, cues disabled")
			return false
		}
	}

	samples, err := Synthesize(k, volume, u.sampleRate, u.jitter())
	if err != nil {
		u.logger.Debug(ctx, "Skipping cue", "kind", string(k), "error", err.Error())
		return false
	}

	clip := Clip{Kind: k, SampleRate: u.sampleRate, WAV: EncodeWAV(samples, u.sampleRate)}
	if err := u.out.Play(ctx, clip); err != nil {
		u.failed = true
		u.logger.Warn(ctx, errors.ErrAudioUnavailable.Wrap(err), "Audio playback failed, cues disabled")
		return false
	}
	return true
}

// Failed reports whether the unit has been silenced by an audio failure.
func (u *Unit) Failed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.failed
}

// Close releases the output if it implements io.Closer.
func (u *Unit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c, ok := u.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (u *Unit) acquireLocked() error {
	if u.opener == nil {
		return errors.ErrAudioUnavailable.Wrap(errors.New("no audio output configured"))
	}
	out, err := u.opener()
	if err != nil {
		return errors.ErrAudioUnavailable.Wrap(err)
	}
	if out == nil {
		return errors.ErrAudioUnavailable.Wrap(errors.New("audio output is nil"))
	}
	u.out = out
	return nil
}
