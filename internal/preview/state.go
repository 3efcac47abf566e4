package preview

// State is the lifecycle state of the rendering context handle.
type State int

const (
	// StateUninitialized means no rendering context exists. The channel stays
	// here when a context could not be created.
	StateUninitialized State = iota
	// StateLoading means a context is bound and loading its bootstrap
	// document. Updates are dropped.
	StateLoading
	// StateReady means the bootstrap script signalled load completion and
	// updates are delivered.
	StateReady
	// StateStale means the current context is being torn down so a new one
	// can be bound.
	StateStale
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}
