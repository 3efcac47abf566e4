package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/version"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/go-chi/chi/v5"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Preview   string `json:"preview"`
	Editors   int    `json:"editors"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

type bufferRequest struct {
	Text string `json:"text"`
}

type changedResponse struct {
	Changed bool `json:"changed"`
}

type libraryRequest struct {
	URL string `json:"url"`
}

type saveRequest struct {
	Name string `json:"name"`
}

type projectSummary struct {
	Name      string    `json:"name"`
	SavedAt   time.Time `json:"savedAt"`
	Libraries int       `json:"libraries"`
}

type autotypeRequest struct {
	Script         string `json:"script"`
	Target         string `json:"target"`
	CharsPerSecond int    `json:"charsPerSecond"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code by its error type.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrNoProjects):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrAlreadyRunning), errors.Is(err, errors.ErrNotRunning):
		status = http.StatusConflict
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	default:
		if t, ok := errors.TypeOf(err); ok && t == errors.ErrorTypeChannel {
			status = http.StatusServiceUnavailable
		}
	}

	resp := errorResponse{Error: err.Error()}
	var ce *errors.CodepadError
	if errors.As(err, &ce) {
		resp.Code = ce.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "malformed request body").Wrap(err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   version.GetShortVersion(),
		Preview:   s.channel.State().String(),
		Editors:   s.hub.Count(editorTopic),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stateMessage(""))
}

func (s *Server) handleSetBuffer(w http.ResponseWriter, r *http.Request) {
	b, err := workspace.ParseBuffer(chi.URLParam(r, "buffer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req bufferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.workspace.SetBuffer(b, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

func (s *Server) handleLibraryCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, preview.CommonLibraries)
}

func (s *Server) handleAddLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.workspace.AddLibrary(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

func (s *Server) handleRemoveLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.workspace.RemoveLibrary(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.workspace.Settings()
	if err := decodeJSON(w, r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.workspace.UpdateSettings(settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sound.Configure(settings.Sound)
	writeJSON(w, http.StatusOK, s.workspace.Settings())
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	rec := project.FromSnapshot(req.Name, s.workspace.Snapshot(), time.Now())
	if err := s.store.Append(r.Context(), rec); err != nil {
		s.notify(LevelError, "messages.error")
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "Project saved", "name", rec.Name)
	s.notify(LevelSuccess, "messages.saved")
	writeJSON(w, http.StatusCreated, summarize(rec))
}

// handleLoadProject restores the most recently saved project.
func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Last(r.Context())
	if err != nil {
		if errors.Is(err, errors.ErrNoProjects) {
			s.notify(LevelInfo, "messages.selectProject")
		} else {
			s.notify(LevelError, "messages.error")
		}
		s.writeError(w, r, err)
		return
	}

	// Stop typing so it does not overwrite the loaded buffers.
	s.typist.Stop()
	snap := rec.Snapshot()
	// Mute is not stored with projects; keep the current choice.
	snap.Settings.Sound.Muted = s.workspace.Settings().Sound.Muted
	if err := s.workspace.Load(r.Context(), snap); err != nil {
		s.notify(LevelError, "messages.error")
		s.writeError(w, r, err)
		return
	}
	s.sound.Configure(s.workspace.Settings().Sound)
	s.notify(LevelSuccess, "messages.loaded")
	writeJSON(w, http.StatusOK, summarize(rec))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]projectSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport streams the current workspace as a ZIP archive. The archive
// is built in memory first so a failure can still be reported as JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.workspace.Snapshot()
	var buf bytes.Buffer
	if err := project.Export(r.Context(), &buf, snap, workspace.Effective(snap.Document, s.compiler)); err != nil {
		s.notify(LevelError, "messages.error")
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+project.ArchiveName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write export")
		return
	}
	s.notify(LevelSuccess, "messages.downloaded")
}

func (s *Server) handleAutotypeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.typist.Status())
}

func (s *Server) handleAutotypeStart(w http.ResponseWriter, r *http.Request) {
	var req autotypeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := workspace.ParseBuffer(req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cps := req.CharsPerSecond
	if cps == 0 {
		cps = s.cfg.Autotype.CharsPerSecond
	}
	if err := s.typist.Start(req.Script, target, cps); err != nil {
		if errors.Is(err, errors.ErrEmptyScript) {
			s.notify(LevelError, "messages.emptyScript")
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.typist.Status())
}

// handleAutotypePause toggles between typing and paused.
func (s *Server) handleAutotypePause(w http.ResponseWriter, r *http.Request) {
	if _, err := s.typist.Pause(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.typist.Status())
}

func (s *Server) handleAutotypeStop(w http.ResponseWriter, r *http.Request) {
	s.typist.Stop()
	writeJSON(w, http.StatusOK, autotype.Status{State: autotype.StateIdle.String()})
}

func summarize(rec project.Record) projectSummary {
	return projectSummary{
		Name:      rec.Name,
		SavedAt:   rec.SavedAt(),
		Libraries: len(rec.Libraries),
	}
}
