// Package autotype replays a script into one source buffer a character at a
// time, the way a person would type it, for demos and screencasts.
package autotype

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/workspace"
)

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateTyping
	StatePaused
	StateCompleted
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTyping:
		return "typing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Speed bounds in characters per second.
const (
	MinCharsPerSecond = 1
	MaxCharsPerSecond = 100
)

// BufferWriter receives the typed prefix.
type BufferWriter interface {
	SetBuffer(b workspace.Buffer, text string) (bool, error)
}

// Cuer plays one keystroke cue.
type Cuer interface {
	Cue(ctx context.Context) bool
}

// Status is a snapshot of the session.
type Status struct {
	State          string           `json:"state"`
	Target         workspace.Buffer `json:"target,omitempty"`
	Cursor         int              `json:"cursor"`
	Length         int              `json:"length"`
	CharsPerSecond int              `json:"charsPerSecond,omitempty"`
}

// Listener observes status changes. It is called without the simulator
// lock held.
type Listener func(Status)

// Options bound what Start accepts.
type Options struct {
	MaxScriptBytes int
}

// Simulator runs at most one typing session.
type Simulator struct {
	mu        sync.Mutex
	writer    BufferWriter
	cuer      Cuer
	opts      Options
	state     State
	script    []rune
	target    workspace.Buffer
	cps       int
	cursor    int
	stop      chan struct{}
	done      chan struct{}
	listeners []Listener
	logger    logging.Logger
}

// New creates an idle simulator. cuer may be nil.
func New(writer BufferWriter, cuer Cuer, opts Options, logger logging.Logger) *Simulator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Simulator{
		writer: writer,
		cuer:   cuer,
		opts:   opts,
		logger: logger.WithComponent("autotype"),
	}
}

// OnChange registers a status listener.
func (s *Simulator) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start begins typing script into target at cps characters per second.
// A blank script, an invalid target or speed, or a session that is already
// typing or paused is rejected.
func (s *Simulator) Start(script string, target workspace.Buffer, cps int) error {
	if strings.TrimSpace(script) == "" {
		return errors.ErrEmptyScript
	}
	if !target.Valid() {
		return errors.ErrUnknownBuffer.Wrap(nil).WithContext("buffer", string(target))
	}
	if cps < MinCharsPerSecond || cps > MaxCharsPerSecond {
		return errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("speed must be between %d and %d chars/sec", MinCharsPerSecond, MaxCharsPerSecond)).
			WithContext("chars_per_second", cps)
	}
	if s.opts.MaxScriptBytes > 0 && len(script) > s.opts.MaxScriptBytes {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "script too large").
			WithContext("bytes", len(script)).
			WithContext("max_bytes", s.opts.MaxScriptBytes)
	}

	s.mu.Lock()
	if s.state == StateTyping || s.state == StatePaused {
		s.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	s.script = []rune(script)
	s.target = target
	s.cps = cps
	s.cursor = 0
	s.state = StateTyping
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info(context.Background(), "Auto-typing started",
		"target", string(target),
		"chars", status.Length,
		"chars_per_second", cps,
	)
	go s.run(stop, done, time.Second/time.Duration(cps))
	s.emit(status)
	return nil
}

// Pause toggles the paused flag. The ticker keeps running while paused;
// ticks simply do nothing. It returns whether the session is now paused.
func (s *Simulator) Pause() (bool, error) {
	s.mu.Lock()
	switch s.state {
	case StateTyping:
		s.state = StatePaused
	case StatePaused:
		s.state = StateTyping
	default:
		s.mu.Unlock()
		return false, errors.ErrNotRunning
	}
	paused := s.state == StatePaused
	status := s.statusLocked()
	s.mu.Unlock()

	s.emit(status)
	return paused, nil
}

// Stop cancels the session and resets the cursor. Text already typed stays
// in the buffer. Stop waits for the ticker goroutine to exit.
func (s *Simulator) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	wasActive := s.state != StateIdle
	s.stop, s.done = nil, nil
	s.state = StateIdle
	s.cursor = 0
	status := s.statusLocked()
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if wasActive {
		s.emit(status)
	}
}

// Close stops any running session.
func (s *Simulator) Close() error {
	s.Stop()
	return nil
}

// Status returns the current session snapshot.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Simulator) statusLocked() Status {
	st := Status{
		State:  s.state.String(),
		Cursor: s.cursor,
		Length: len(s.script),
	}
	if s.state != StateIdle {
		st.Target = s.target
		st.CharsPerSecond = s.cps
	}
	return st
}

func (s *Simulator) run(stop <-chan struct{}, done chan<- struct{}, period time.Duration) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.tick(stop) {
				return
			}
		}
	}
}

// tick types one character. It reports whether the session is over.
func (s *Simulator) tick(stop <-chan struct{}) bool {
	s.mu.Lock()
	select {
	case <-stop:
		s.mu.Unlock()
		return true
	default:
	}
	if s.state == StatePaused {
		s.mu.Unlock()
		return false
	}

	if s.cuer != nil {
		s.cuer.Cue(context.Background())
	}
	prefix := string(s.script[:s.cursor+1])
	if _, err := s.writer.SetBuffer(s.target, prefix); err != nil {
		s.logger.Warn(context.Background(), err, "Auto-typing write failed",
			"target", string(s.target),
		)
	}
	s.cursor++

	finished := s.cursor >= len(s.script)
	if finished {
		s.state = StateCompleted
		s.stop, s.done = nil, nil
	}
	status := s.statusLocked()
	s.mu.Unlock()

	if finished {
		s.logger.Info(context.Background(), "Auto-typing completed", "chars", status.Length)
	}
	s.emit(status)
	return finished
}

func (s *Simulator) emit(status Status) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}
