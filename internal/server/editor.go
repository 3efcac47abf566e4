package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/i18n"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/websocket"
	"github.com/conneroisu/codepad/internal/workspace"
)

// Editor and preview socket message types.
const (
	MessageEdit           = "edit"
	MessageReady          = "ready"
	MessageState          = "state"
	MessageBuffer         = "buffer"
	MessagePreviewContext = "preview_context"
	MessagePreviewDegrade = "preview_degraded"
	MessageNotification   = "notification"
	MessageSound          = "sound"
	MessageAutotype       = "autotype"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// inboundMessage is any message a browser sends.
type inboundMessage struct {
	Type   string `json:"type"`
	Buffer string `json:"buffer,omitempty"`
	Text   string `json:"text"`
}

// PreviewInfo describes the current rendering context.
type PreviewInfo struct {
	State     string `json:"state"`
	ContextID string `json:"contextId,omitempty"`
	URL       string `json:"url,omitempty"`
}

// StateMessage is sent to an editor on connect and after loads, library and
// settings changes.
type StateMessage struct {
	Type      string             `json:"type"`
	ClientID  string             `json:"clientId,omitempty"`
	Document  workspace.Document `json:"document"`
	Artifact  workspace.Artifact `json:"artifact"`
	Libraries []string           `json:"libraries"`
	Settings  workspace.Settings `json:"settings"`
	Preview   PreviewInfo        `json:"preview"`
	Autotype  autotype.Status    `json:"autotype"`
}

// BufferMessage reports one changed buffer. Editors ignore messages whose
// origin is their own client id.
type BufferMessage struct {
	Type   string           `json:"type"`
	Buffer workspace.Buffer `json:"buffer"`
	Text   string           `json:"text"`
	Origin string           `json:"origin,omitempty"`
}

// PreviewContextMessage points the editor's iframe at a new context.
type PreviewContextMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// DegradedMessage reports that no rendering context could be created.
type DegradedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NotificationMessage is a transient, localized toast. Key lets each editor
// re-localize into its own language.
type NotificationMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// SoundMessage carries a rendered cue; WAV is base64 encoded on the wire.
type SoundMessage struct {
	Type string     `json:"type"`
	Kind sound.Kind `json:"kind"`
	WAV  []byte     `json:"wav"`
}

// AutotypeMessage reports the typing session.
type AutotypeMessage struct {
	Type   string          `json:"type"`
	Status autotype.Status `json:"status"`
}

// editorOutput plays cues on every connected editor.
type editorOutput struct {
	hub *websocket.Hub
}

func (o editorOutput) Play(ctx context.Context, clip sound.Clip) error {
	_, err := o.hub.Broadcast(editorTopic, SoundMessage{Type: MessageSound, Kind: clip.Kind, WAV: clip.WAV})
	return err
}

func (s *Server) previewInfo() PreviewInfo {
	info := PreviewInfo{State: s.channel.State().String()}
	if id := s.channel.ContextID(); id != "" {
		info.ContextID = id
		info.URL = previewURL(id)
	}
	return info
}

func (s *Server) stateMessage(clientID string) StateMessage {
	snap := s.workspace.Snapshot()
	return StateMessage{
		Type:      MessageState,
		ClientID:  clientID,
		Document:  snap.Document,
		Artifact:  s.workspace.Artifact(),
		Libraries: snap.Libraries,
		Settings:  snap.Settings,
		Preview:   s.previewInfo(),
		Autotype:  s.typist.Status(),
	}
}

// notify broadcasts a localized notification to every editor.
func (s *Server) notify(level, key string) {
	msg := NotificationMessage{
		Type:    MessageNotification,
		Level:   level,
		Key:     key,
		Message: i18n.T(s.lang, key),
	}
	if _, err := s.hub.Broadcast(editorTopic, msg); err != nil {
		s.logger.Warn(context.Background(), err, "Failed to broadcast notification", "key", key)
	}
}

func (s *Server) handleClientConnect(c *websocket.Client) {
	if c.Topic() != editorTopic {
		return
	}
	c.Send(s.stateMessage(c.ID()))
}

func (s *Server) handleClientMessage(ctx context.Context, c *websocket.Client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug(ctx, "Ignoring malformed message", "client_id", c.ID(), "error", err.Error())
		return
	}

	switch {
	case c.Topic() == editorTopic:
		s.handleEditorMessage(ctx, c, msg)
	case strings.HasPrefix(c.Topic(), previewTopicPrefix):
		s.handlePreviewMessage(ctx, c, msg)
	}
}

func (s *Server) handleEditorMessage(ctx context.Context, c *websocket.Client, msg inboundMessage) {
	if msg.Type != MessageEdit {
		s.logger.Debug(ctx, "Ignoring editor message", "type", msg.Type)
		return
	}

	b, err := workspace.ParseBuffer(msg.Buffer)
	if err != nil {
		s.logger.Warn(ctx, err, "Rejected edit", "client_id", c.ID(), "buffer", msg.Buffer)
		return
	}
	changed, err := s.workspace.SetBufferFrom(b, msg.Text, c.ID())
	if err != nil {
		s.logger.Warn(ctx, err, "Edit failed", "client_id", c.ID(), "buffer", msg.Buffer)
		return
	}
	if changed {
		s.sound.Cue(ctx)
	}
}

// handlePreviewMessage handles the readiness signal. A socket that joins a
// context which is already ready gets its full push directly.
func (s *Server) handlePreviewMessage(ctx context.Context, c *websocket.Client, msg inboundMessage) {
	if msg.Type != MessageReady {
		return
	}
	id := strings.TrimPrefix(c.Topic(), previewTopicPrefix)

	err := s.workspace.ContextReady(id)
	switch {
	case err == nil:
		s.logger.Debug(ctx, "Rendering context ready", "context_id", id)
	case errors.Is(err, errors.ErrStaleContext) &&
		s.channel.ContextID() == id && s.channel.State() == preview.StateReady:
		s.workspace.Replay(func(u preview.Update) { c.Send(u) })
	default:
		s.logger.Debug(ctx, "Readiness signal ignored", "context_id", id, "error", err.Error())
	}
}

// forwardWorkspaceEvents relays workspace changes to editors until events
// is closed.
func (s *Server) forwardWorkspaceEvents(events <-chan workspace.Event) {
	defer close(s.forwardDone)
	for ev := range events {
		var msg any
		switch ev.Type {
		case workspace.EventBufferChanged:
			msg = BufferMessage{Type: MessageBuffer, Buffer: ev.Buffer, Text: ev.Text, Origin: ev.Origin}
		default:
			msg = s.stateMessage("")
		}
		if _, err := s.hub.Broadcast(editorTopic, msg); err != nil {
			s.logger.Warn(context.Background(), err, "Failed to forward workspace event", "event", ev.Type.String())
		}
	}
}

func (s *Server) announcePreviewContext(id, url string) {
	if _, err := s.hub.Broadcast(editorTopic, PreviewContextMessage{Type: MessagePreviewContext, ID: id, URL: url}); err != nil {
		s.logger.Warn(context.Background(), err, "Failed to announce preview context", "context_id", id)
	}
}

// previewStateChanged runs with the channel locked; it only touches the hub.
func (s *Server) previewStateChanged(state preview.State, contextID string) {
	if state != preview.StateUninitialized || s.shuttingDown.Load() {
		return
	}
	msg := DegradedMessage{Type: MessagePreviewDegrade, Message: i18n.T(s.lang, "preview.degraded")}
	if _, err := s.hub.Broadcast(editorTopic, msg); err != nil {
		s.logger.Warn(context.Background(), err, "Failed to report degraded preview")
	}
}

func (s *Server) autotypeChanged(status autotype.Status) {
	if _, err := s.hub.Broadcast(editorTopic, AutotypeMessage{Type: MessageAutotype, Status: status}); err != nil {
		s.logger.Warn(context.Background(), err, "Failed to broadcast autotype status")
	}
	if status.State == autotype.StateCompleted.String() {
		s.notify(LevelSuccess, "messages.typingCompleted")
	}
}

// soundOpener opens the editor broadcast output. It is never called before
// the hub exists.
func (s *Server) soundOpener() (sound.Output, error) {
	if s.hub.IsShutdown() {
		return nil, errors.ErrAudioUnavailable
	}
	return editorOutput{hub: s.hub}, nil
}
