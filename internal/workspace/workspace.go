// Package workspace is the single source of truth for the playground's
// source buffers. Every mutation recomputes the effective style and script
// and forwards the changed facets to the preview channel in the same step.
package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/preview"
)

// Compiler turns the secondary languages into the primary ones.
type Compiler interface {
	CompileStyles(scss string) string
	CompileScript(ts string) string
}

// Snapshot is the complete persistable state of a workspace.
type Snapshot struct {
	Document  Document `json:"document"`
	Libraries []string `json:"libraries"`
	Settings  Settings `json:"settings"`
}

// EventType identifies what changed in the workspace.
type EventType int

const (
	EventBufferChanged EventType = iota
	EventLibrariesChanged
	EventSettingsChanged
	EventLoaded
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventBufferChanged:
		return "buffer"
	case EventLibrariesChanged:
		return "libraries"
	case EventSettingsChanged:
		return "settings"
	case EventLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Event describes one change.
type Event struct {
	Type      EventType
	Buffer    Buffer
	Text      string
	Origin    string
	Timestamp time.Time
}

// Workspace owns the buffers, the editor settings and the preview channel.
// Lock order is workspace then channel.
type Workspace struct {
	mu       sync.Mutex
	doc      Document
	settings Settings
	compiler Compiler
	channel  *preview.Channel
	watchers []chan Event
	logger   logging.Logger
}

type defaultCompiler struct{}

func (defaultCompiler) CompileStyles(scss string) string { return compiler.CompileStyles(scss) }
func (defaultCompiler) CompileScript(ts string) string   { return compiler.CompileScript(ts) }

// New creates a workspace seeded with DefaultDocument. channel may be nil,
// in which case no preview is driven; a nil comp uses the package-level
// compiler.
func New(channel *preview.Channel, comp Compiler, logger logging.Logger) *Workspace {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if comp == nil {
		comp = defaultCompiler{}
	}
	return &Workspace{
		doc:      DefaultDocument(),
		settings: DefaultSettings(),
		compiler: comp,
		channel:  channel,
		logger:   logger.WithComponent("workspace"),
	}
}

// Channel returns the preview channel driven by the workspace.
func (w *Workspace) Channel() *preview.Channel {
	return w.channel
}

// Document returns a copy of the buffers.
func (w *Workspace) Document() Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// Buffer returns the text of b.
func (w *Workspace) Buffer(b Buffer) (string, error) {
	if !b.Valid() {
		return "", errors.ErrUnknownBuffer.Wrap(nil).WithContext("buffer", string(b))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.Get(b), nil
}

// Artifact returns the effective style and script for the current buffers.
func (w *Workspace) Artifact() Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.artifactLocked()
}

// SetBuffer replaces the text of b and forwards the result to the preview:
// markup only for html, style and script for every other buffer. An edit
// that leaves the buffer unchanged is ignored. It reports whether the buffer
// changed.
func (w *Workspace) SetBuffer(b Buffer, text string) (bool, error) {
	return w.SetBufferFrom(b, text, "")
}

// SetBufferFrom is SetBuffer with the origin of the edit recorded on the
// emitted event, so the editor that typed it can skip the echo.
func (w *Workspace) SetBufferFrom(b Buffer, text, origin string) (bool, error) {
	if !b.Valid() {
		return false, errors.ErrUnknownBuffer.Wrap(nil).WithContext("buffer", string(b))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.doc.Get(b) == text {
		return false, nil
	}
	w.doc.set(b, text)

	var u preview.Update
	if b.styling() {
		a := w.artifactLocked()
		u = preview.NewUpdate().WithStyle(a.CSS).WithScript(a.JS)
	} else {
		u = preview.NewUpdate().WithMarkup(text)
	}
	w.sendLocked(u)

	w.notifyLocked(Event{Type: EventBufferChanged, Buffer: b, Text: text, Origin: origin})
	return true, nil
}

// ContextReady handles the readiness signal of a rendering context by
// handing the channel one full push built from the current buffers.
func (w *Workspace) ContextReady(id string) error {
	if w.channel == nil {
		return errors.ErrChannelUnavailable
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	a := w.artifactLocked()
	return w.channel.Ready(id, preview.FullUpdate(w.doc.HTML, a.CSS, a.JS))
}

// FullUpdate returns the update that brings a fresh context up to date.
func (w *Workspace) FullUpdate() preview.Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.artifactLocked()
	return preview.FullUpdate(w.doc.HTML, a.CSS, a.JS)
}

// Replay hands the current full update to deliver with the workspace
// locked, so no edit is sent between the snapshot and its delivery. deliver
// must not call back into the workspace.
func (w *Workspace) Replay(deliver func(preview.Update)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.artifactLocked()
	deliver(preview.FullUpdate(w.doc.HTML, a.CSS, a.JS))
}

// Libraries returns the preview's library set.
func (w *Workspace) Libraries() []string {
	if w.channel == nil {
		return nil
	}
	return w.channel.Libraries()
}

// AddLibrary adds a library to the preview, forcing a reload of the
// rendering context. Adding a present URL is a no-op.
func (w *Workspace) AddLibrary(ctx context.Context, ref string) (bool, error) {
	return w.changeLibraries(func(ch *preview.Channel) (bool, error) {
		return ch.AddLibrary(ctx, ref)
	})
}

// RemoveLibrary removes a library. Removing an absent URL is a no-op.
func (w *Workspace) RemoveLibrary(ctx context.Context, ref string) (bool, error) {
	return w.changeLibraries(func(ch *preview.Channel) (bool, error) {
		return ch.RemoveLibrary(ctx, ref)
	})
}

func (w *Workspace) changeLibraries(fn func(*preview.Channel) (bool, error)) (bool, error) {
	if w.channel == nil {
		return false, errors.ErrChannelUnavailable
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	changed, err := fn(w.channel)
	if changed {
		w.notifyLocked(Event{Type: EventLibrariesChanged})
	}
	return changed, err
}

// Settings returns the editor settings.
func (w *Workspace) Settings() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// UpdateSettings validates and stores s.
func (w *Workspace) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = s
	w.notifyLocked(Event{Type: EventSettingsChanged})
	return nil
}

// Snapshot captures buffers, libraries and settings.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{Document: w.doc, Settings: w.settings, Libraries: []string{}}
	if w.channel != nil {
		snap.Libraries = w.channel.Libraries()
	}
	return snap
}

// Load replaces the whole workspace with snap. Changed buffers are coalesced
// into a single update; a changed library set rebinds the rendering context
// instead, and the full push at readiness carries the loaded buffers.
// Invalid settings or libraries abort the load before anything changes.
func (w *Workspace) Load(ctx context.Context, snap Snapshot) error {
	if err := snap.Settings.Validate(); err != nil {
		return err
	}
	libs, err := preview.NewLibrarySet(snap.Libraries)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.doc
	w.doc = snap.Document
	w.settings = snap.Settings

	if w.channel != nil {
		if _, err := w.channel.SetLibraries(ctx, libs.List()); err != nil {
			w.logger.Warn(ctx, err, "Preview unavailable after load")
		}
	}

	u := preview.NewUpdate()
	if prev.HTML != w.doc.HTML {
		u = u.WithMarkup(w.doc.HTML)
	}
	if prev.CSS != w.doc.CSS || prev.SCSS != w.doc.SCSS ||
		prev.JavaScript != w.doc.JavaScript || prev.TypeScript != w.doc.TypeScript {
		a := w.artifactLocked()
		u = u.WithStyle(a.CSS).WithScript(a.JS)
	}
	w.sendLocked(u)

	w.notifyLocked(Event{Type: EventLoaded})
	w.logger.Info(ctx, "Workspace loaded", "libraries", libs.Len())
	return nil
}

// Watch returns a channel receiving workspace events. Events are dropped
// for watchers that fall behind.
func (w *Workspace) Watch() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Event, 100)
	w.watchers = append(w.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (w *Workspace) UnWatch(ch <-chan Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, watcher := range w.watchers {
		if watcher == ch {
			close(watcher)
			w.watchers = append(w.watchers[:i], w.watchers[i+1:]...)
			break
		}
	}
}

func (w *Workspace) notifyLocked(ev Event) {
	ev.Timestamp = time.Now()
	for _, watcher := range w.watchers {
		select {
		case watcher <- ev:
		default:
			w.logger.Debug(context.Background(), "Dropping workspace event for slow watcher",
				"event", ev.Type.String(),
			)
		}
	}
}

func (w *Workspace) sendLocked(u preview.Update) {
	if w.channel == nil || u.IsEmpty() {
		return
	}
	w.channel.Send(u)
}

func (w *Workspace) artifactLocked() Artifact {
	return Effective(w.doc, w.compiler)
}

// Effective compiles the secondary language whenever its buffer holds
// anything but whitespace, even when the result is empty, and uses the
// primary buffer otherwise.
func Effective(doc Document, comp Compiler) Artifact {
	if comp == nil {
		comp = defaultCompiler{}
	}
	a := Artifact{CSS: doc.CSS, JS: doc.JavaScript}
	if strings.TrimSpace(doc.SCSS) != "" {
		a.CSS = comp.CompileStyles(doc.SCSS)
	}
	if strings.TrimSpace(doc.TypeScript) != "" {
		a.JS = comp.CompileScript(doc.TypeScript)
	}
	return a
}
