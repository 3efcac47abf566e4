// Package preview owns the rendering context of the playground: its
// lifecycle (uninitialized, loading, ready, stale), the bootstrap document
// bound to it, and the update protocol used to push compiled output into it
// without reloading.
package preview

import (
	"context"
	"sync"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
)

// RenderingContext is one bound, isolated preview surface.
type RenderingContext interface {
	// ID identifies the context in readiness signals.
	ID() string
	// Post delivers an update. Posts are applied in call order.
	Post(u Update) error
	// Release frees the context and everything bound to it.
	Release()
}

// Binder creates rendering contexts from a bootstrap document.
type Binder interface {
	Bind(ctx context.Context, document []byte) (RenderingContext, error)
}

// StateListener observes lifecycle transitions. It runs with the channel
// locked and must not call back into the channel.
type StateListener func(state State, contextID string)

// Channel owns exactly one rendering context and the protocol for updating
// it.
type Channel struct {
	mu        sync.Mutex
	binder    Binder
	libraries *LibrarySet
	state     State
	current   RenderingContext
	listeners []StateListener
	logger    logging.Logger
}

// NewChannel creates a channel in StateUninitialized. Call Init to bind the
// first context.
func NewChannel(binder Binder, libraries []string, logger logging.Logger) (*Channel, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	set, err := NewLibrarySet(libraries)
	if err != nil {
		return nil, err
	}
	return &Channel{
		binder:    binder,
		libraries: set,
		state:     StateUninitialized,
		logger:    logger.WithComponent("preview"),
	}, nil
}

// OnStateChange registers a listener for lifecycle transitions.
func (c *Channel) OnStateChange(fn StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Init binds a context for the current library set. On failure the channel
// stays uninitialized and the returned error matches
// errors.ErrChannelUnavailable; the preview is degraded, not broken.
func (c *Channel) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebindLocked(ctx)
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ContextID returns the id of the bound context, or "".
func (c *Channel) ContextID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.ID()
}

// Libraries returns the library set in insertion order.
func (c *Channel) Libraries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.libraries.List()
}

// AddLibrary adds ref and rebinds the context. Adding a present URL is a
// no-op. The bool reports whether the set changed.
func (c *Channel) AddLibrary(ctx context.Context, ref string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.libraries.Add(ref)
	if err != nil || !changed {
		return false, err
	}
	return true, c.rebindLocked(ctx)
}

// RemoveLibrary removes ref and rebinds the context. Removing an absent URL
// is a no-op.
func (c *Channel) RemoveLibrary(ctx context.Context, ref string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.libraries.Remove(ref) {
		return false, nil
	}
	return true, c.rebindLocked(ctx)
}

// SetLibraries replaces the whole set, rebinding only if it differs.
func (c *Channel) SetLibraries(ctx context.Context, refs []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := NewLibrarySet(refs)
	if err != nil {
		return false, err
	}
	if c.libraries.Equal(next.List()) {
		return false, nil
	}
	c.libraries = next
	return true, c.rebindLocked(ctx)
}

// Ready handles the one-shot readiness signal of context id. The channel
// moves to StateReady and posts full immediately. Signals for a context that
// is not current or not loading match errors.ErrStaleContext.
func (c *Channel) Ready(id string, full Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID() != id || c.state != StateLoading {
		c.logger.Debug(context.Background(), "Ignoring readiness signal",
			"context_id", id,
			"state", c.state.String(),
		)
		return errors.ErrStaleContext.Wrap(nil).WithContext("context_id", id)
	}

	c.setStateLocked(StateReady)
	c.postLocked(full)
	return nil
}

// Send pushes u while the context is ready. In any other state the update
// is dropped and Send returns false; the full push at the next readiness
// signal brings the context up to date.
func (c *Channel) Send(u Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady || c.current == nil {
		c.logger.Debug(context.Background(), "Dropping update, context not ready",
			"state", c.state.String(),
		)
		return false
	}
	if u.IsEmpty() {
		return false
	}
	return c.postLocked(u)
}

// Close releases the bound context.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Release()
		c.current = nil
	}
	c.setStateLocked(StateUninitialized)
}

func (c *Channel) postLocked(u Update) bool {
	if u.Type == "" {
		u.Type = MessageTypeUpdate
	}
	if err := c.current.Post(u); err != nil {
		c.logger.Warn(context.Background(), err, "Failed to post update",
			"context_id", c.current.ID(),
		)
		return false
	}
	return true
}

// rebindLocked releases the current context, renders a fresh bootstrap
// document and binds it.
func (c *Channel) rebindLocked(ctx context.Context) error {
	if c.current != nil {
		c.setStateLocked(StateStale)
		c.current.Release()
		c.current = nil
	}

	fail := func(err error) error {
		c.setStateLocked(StateUninitialized)
		c.logger.Warn(ctx, err, "Preview unavailable, running degraded")
		return errors.ErrChannelUnavailable.Wrap(err)
	}

	if c.binder == nil {
		return fail(errors.New("no binder configured"))
	}

	doc, err := RenderBootstrap(ctx, c.libraries.List())
	if err != nil {
		return fail(err)
	}

	rc, err := c.binder.Bind(ctx, doc)
	if err != nil {
		return fail(err)
	}

	c.current = rc
	c.setStateLocked(StateLoading)
	c.logger.Info(ctx, "Rendering context bound",
		"context_id", rc.ID(),
		"libraries", c.libraries.Len(),
		"bytes", len(doc),
	)
	return nil
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	id := ""
	if c.current != nil {
		id = c.current.ID()
	}
	for _, fn := range c.listeners {
		fn(s, id)
	}
}
