package workspace

import (
	"strings"

	"github.com/conneroisu/codepad/internal/errors"
)

// Buffer names one of the five source buffers.
type Buffer string

const (
	BufferHTML       Buffer = "html"
	BufferCSS        Buffer = "css"
	BufferSCSS       Buffer = "scss"
	BufferJavaScript Buffer = "javascript"
	BufferTypeScript Buffer = "typescript"
)

// Buffers lists every buffer in display order.
func Buffers() []Buffer {
	return []Buffer{BufferHTML, BufferCSS, BufferSCSS, BufferJavaScript, BufferTypeScript}
}

// ParseBuffer resolves a buffer name. The short forms js and ts are
// accepted.
func ParseBuffer(s string) (Buffer, error) {
	switch b := Buffer(strings.ToLower(strings.TrimSpace(s))); b {
	case BufferHTML, BufferCSS, BufferSCSS, BufferJavaScript, BufferTypeScript:
		return b, nil
	case "js":
		return BufferJavaScript, nil
	case "ts":
		return BufferTypeScript, nil
	default:
		return "", errors.ErrUnknownBuffer.Wrap(nil).WithContext("buffer", s)
	}
}

// Valid reports whether b names a buffer.
func (b Buffer) Valid() bool {
	switch b {
	case BufferHTML, BufferCSS, BufferSCSS, BufferJavaScript, BufferTypeScript:
		return true
	}
	return false
}

// styling reports whether an edit to b changes the effective style or
// script.
func (b Buffer) styling() bool {
	return b != BufferHTML
}

// Document holds the five source buffers.
type Document struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	SCSS       string `json:"scss"`
	JavaScript string `json:"javascript"`
	TypeScript string `json:"typescript"`
}

// Get returns the text of b.
func (d *Document) Get(b Buffer) string {
	switch b {
	case BufferHTML:
		return d.HTML
	case BufferCSS:
		return d.CSS
	case BufferSCSS:
		return d.SCSS
	case BufferJavaScript:
		return d.JavaScript
	case BufferTypeScript:
		return d.TypeScript
	}
	return ""
}

func (d *Document) set(b Buffer, text string) {
	switch b {
	case BufferHTML:
		d.HTML = text
	case BufferCSS:
		d.CSS = text
	case BufferSCSS:
		d.SCSS = text
	case BufferJavaScript:
		d.JavaScript = text
	case BufferTypeScript:
		d.TypeScript = text
	}
}

// Artifact is the effective style and script sent to the preview.
type Artifact struct {
	CSS string `json:"css"`
	JS  string `json:"js"`
}

// DefaultDocument is the welcome project shown on a fresh start.
func DefaultDocument() Document {
	return Document{
		HTML: "<div class=\"container\">\n  <h1>Welcome to Code Editor</h1>\n  <p>Start coding here...</p>\n</div>",
		CSS: ".container {\n  display: flex;\n  flex-direction: column;\n  align-items: center;\n" +
			"  justify-content: center;\n  min-height: 100vh;\n  font-family: Arial, sans-serif;\n" +
			"  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);\n  color: white;\n}\n\n" +
			"h1 {\n  font-size: 2.5rem;\n  margin-bottom: 1rem;\n}",
		JavaScript: `console.log("Welcome to the Code Editor!");`,
	}
}
