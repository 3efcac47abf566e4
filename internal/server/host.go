package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/websocket"
	cws "github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	previewPathPrefix  = "/preview/"
	previewTopicPrefix = "preview/"
	editorTopic        = "editor"
)

var previewAcceptOptions = cws.AcceptOptions{InsecureSkipVerify: true}

func previewURL(id string) string   { return previewPathPrefix + id }
func previewTopic(id string) string { return previewTopicPrefix + id }

// previewDocument is a bound bootstrap document.
type previewDocument struct {
	body      []byte
	libraries []string
}

// contextHost binds bootstrap documents to /preview/{id} and delivers
// updates to the preview sockets of each context.
type contextHost struct {
	mu       sync.RWMutex
	docs     map[string]previewDocument
	closed   bool
	hub      *websocket.Hub
	maxBytes int
	announce func(id, url string)
	logger   logging.Logger
}

func newContextHost(hub *websocket.Hub, maxBytes int, logger logging.Logger) *contextHost {
	return &contextHost{
		docs:     make(map[string]previewDocument),
		hub:      hub,
		maxBytes: maxBytes,
		logger:   logger.WithComponent("context_host"),
	}
}

// Bind implements preview.Binder.
func (h *contextHost) Bind(ctx context.Context, document []byte) (preview.RenderingContext, error) {
	if h.maxBytes > 0 && len(document) > h.maxBytes {
		return nil, errors.NewChannelError(errors.ErrCodeChannelUnavailable,
			fmt.Sprintf("bootstrap document of %d bytes exceeds limit of %d", len(document), h.maxBytes), nil)
	}

	id := uuid.NewString()
	// The library tags are the only absolute references in the document.
	_, libs, err := project.ParseIndex(document)
	if err != nil {
		return nil, errors.NewChannelError(errors.ErrCodeChannelUnavailable, "unreadable bootstrap document", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.NewChannelError(errors.ErrCodeChannelUnavailable, "context host is shut down", nil)
	}
	h.docs[id] = previewDocument{body: document, libraries: libs}
	announce := h.announce
	h.mu.Unlock()

	h.logger.Debug(ctx, "Bound preview document", "context_id", id, "bytes", len(document))
	if announce != nil {
		announce(id, previewURL(id))
	}
	return &hostedContext{id: id, host: h}, nil
}

func (h *contextHost) document(id string) (previewDocument, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, ok := h.docs[id]
	return doc, ok
}

func (h *contextHost) release(id string) {
	h.mu.Lock()
	delete(h.docs, id)
	h.mu.Unlock()

	if n := h.hub.CloseTopic(previewTopic(id), "rendering context released"); n > 0 {
		h.logger.Debug(context.Background(), "Closed preview sockets", "context_id", id, "clients", n)
	}
}

// close refuses further binds.
func (h *contextHost) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// hostedContext is a preview.RenderingContext served by a contextHost.
type hostedContext struct {
	id   string
	host *contextHost
	once sync.Once
}

func (c *hostedContext) ID() string { return c.id }

// Post broadcasts u to the context's preview sockets. The hub enqueues
// synchronously, so posts keep their order.
func (c *hostedContext) Post(u preview.Update) error {
	_, err := c.host.hub.Broadcast(previewTopic(c.id), u)
	return err
}

func (c *hostedContext) Release() {
	c.once.Do(func() { c.host.release(c.id) })
}

// handlePreviewDocument serves a bound bootstrap document.
func (s *Server) handlePreviewDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := s.host.document(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	applySecurityHeaders(w, PreviewSecurityConfig(doc.libraries))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.body); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write preview document", "context_id", id)
	}
}

// handlePreviewSocket upgrades the resident script's connection. The
// sandboxed document has an opaque origin, so the origin check is skipped;
// the socket only receives updates and sends the readiness signal.
func (s *Server) handlePreviewSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.host.document(id); !ok {
		http.NotFound(w, r)
		return
	}
	s.hub.Serve(w, r, previewTopic(id), &previewAcceptOptions)
}
