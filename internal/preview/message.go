package preview

// MessageTypeUpdate is the type tag of every update message.
const MessageTypeUpdate = "update"

// Update is the message pushed into a rendering context. Absent fields leave
// the corresponding slot untouched; a present empty string clears it.
type Update struct {
	Type       string  `json:"type"`
	StyleText  *string `json:"styleText,omitempty"`
	MarkupText *string `json:"markupText,omitempty"`
	ScriptText *string `json:"scriptText,omitempty"`
}

// NewUpdate returns an update with no fields set.
func NewUpdate() Update {
	return Update{Type: MessageTypeUpdate}
}

// FullUpdate returns an update carrying all three slots.
func FullUpdate(markup, style, script string) Update {
	return NewUpdate().WithMarkup(markup).WithStyle(style).WithScript(script)
}

// WithStyle sets the style slot.
func (u Update) WithStyle(s string) Update {
	u.StyleText = &s
	return u
}

// WithMarkup sets the markup slot.
func (u Update) WithMarkup(s string) Update {
	u.MarkupText = &s
	return u
}

// WithScript sets the script slot.
func (u Update) WithScript(s string) Update {
	u.ScriptText = &s
	return u
}

// IsEmpty reports whether no slot is set.
func (u Update) IsEmpty() bool {
	return u.StyleText == nil && u.MarkupText == nil && u.ScriptText == nil
}

// IsFull reports whether every slot is set.
func (u Update) IsFull() bool {
	return u.StyleText != nil && u.MarkupText != nil && u.ScriptText != nil
}

// Merge coalesces two updates; fields set in o win.
func (u Update) Merge(o Update) Update {
	if o.StyleText != nil {
		u.StyleText = o.StyleText
	}
	if o.MarkupText != nil {
		u.MarkupText = o.MarkupText
	}
	if o.ScriptText != nil {
		u.ScriptText = o.ScriptText
	}
	if u.Type == "" {
		u.Type = MessageTypeUpdate
	}
	return u
}
