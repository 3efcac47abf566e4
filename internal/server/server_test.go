package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/codepad/internal/config"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "projects.json")

	store, err := project.OpenStore(cfg.Storage.Driver, cfg.Storage.Path)
	require.NoError(t, err)

	s, err := New(cfg, store, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		srv.Close()
		_ = store.Close()
	})
	return s, srv
}

func dialPath(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	conn.SetReadLimit(1 << 20)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func writeMessage(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// readType reads messages until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %q", typ)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readyPreview connects to the current context and completes the readiness
// handshake, returning the socket and the full update it received.
func readyPreview(t *testing.T, s *Server, srv *httptest.Server) (*websocket.Conn, map[string]any) {
	t.Helper()
	id := s.Channel().ContextID()
	require.NotEmpty(t, id)
	conn := dialPath(t, srv, "/ws"+previewURL(id))
	writeMessage(t, conn, map[string]string{"type": MessageReady})
	return conn, readType(t, conn, preview.MessageTypeUpdate)
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, preview.StateLoading.String(), health.Preview)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestEditorSocketReceivesStateOnConnect(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialPath(t, srv, "/ws/editor")

	state := readType(t, conn, MessageState)
	assert.NotEmpty(t, state["clientId"])

	doc := state["document"].(map[string]any)
	assert.Equal(t, workspace.DefaultDocument().HTML, doc["html"])

	info := state["preview"].(map[string]any)
	assert.Equal(t, s.Channel().ContextID(), info["contextId"])
	assert.Equal(t, previewURL(s.Channel().ContextID()), info["url"])
}

func TestPreviewDocumentIsSandboxed(t *testing.T) {
	s, srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, previewURL(s.Channel().ContextID()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	csp := resp.Header.Get("Content-Security-Policy")
	assert.True(t, strings.HasPrefix(csp, "sandbox allow-scripts"), csp)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="`+preview.MarkupSlotID+`"`)

	missing := doJSON(t, srv, http.MethodGet, previewURL("unknown"), nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestReadyHandshakeDeliversFullThenIncrementalUpdates(t *testing.T) {
	s, srv := newTestServer(t)

	conn, full := readyPreview(t, s, srv)
	assert.Equal(t, workspace.DefaultDocument().HTML, full["markupText"])
	assert.Contains(t, full, "styleText")
	assert.Contains(t, full, "scriptText")
	assert.Equal(t, preview.StateReady, s.Channel().State())

	resp := doJSON(t, srv, http.MethodPut, "/api/buffers/html", bufferRequest{Text: "<p>hi</p>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u := readType(t, conn, preview.MessageTypeUpdate)
	assert.Equal(t, "<p>hi</p>", u["markupText"])
	assert.NotContains(t, u, "styleText")
	assert.NotContains(t, u, "scriptText")
}

func TestLateJoinerReceivesReplay(t *testing.T) {
	s, srv := newTestServer(t)
	readyPreview(t, s, srv)

	_, err := s.Workspace().SetBuffer(workspace.BufferHTML, "<main>late</main>")
	require.NoError(t, err)

	_, full := readyPreview(t, s, srv)
	assert.Equal(t, "<main>late</main>", full["markupText"])
}

func TestEditorEditsAreBroadcastWithOrigin(t *testing.T) {
	_, srv := newTestServer(t)

	a := dialPath(t, srv, "/ws/editor")
	b := dialPath(t, srv, "/ws/editor")
	aID := readType(t, a, MessageState)["clientId"]
	readType(t, b, MessageState)

	writeMessage(t, a, map[string]string{"type": MessageEdit, "buffer": "css", "text": "p { color: red; }"})

	msg := readType(t, b, MessageBuffer)
	assert.Equal(t, "css", msg["buffer"])
	assert.Equal(t, "p { color: red; }", msg["text"])
	assert.Equal(t, aID, msg["origin"])
}

func TestAddLibraryRebindsPreview(t *testing.T) {
	s, srv := newTestServer(t)
	oldID := s.Channel().ContextID()

	editor := dialPath(t, srv, "/ws/editor")
	readType(t, editor, MessageState)

	resp := doJSON(t, srv, http.MethodPost, "/api/libraries", libraryRequest{URL: "https://cdn.example.com/lib.js"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := readType(t, editor, MessagePreviewContext)
	assert.NotEqual(t, oldID, msg["id"])
	assert.Equal(t, s.Channel().ContextID(), msg["id"])

	gone := doJSON(t, srv, http.MethodGet, previewURL(oldID), nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)

	doc := doJSON(t, srv, http.MethodGet, previewURL(s.Channel().ContextID()), nil)
	body, err := io.ReadAll(doc.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<script src="https://cdn.example.com/lib.js"></script>`)
	assert.Contains(t, doc.Header.Get("Content-Security-Policy"), "https://cdn.example.com")

	bad := doJSON(t, srv, http.MethodPost, "/api/libraries", libraryRequest{URL: "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSaveAndLoadProject(t *testing.T) {
	s, srv := newTestServer(t)

	none := doJSON(t, srv, http.MethodPost, "/api/project/load", nil)
	assert.Equal(t, http.StatusNotFound, none.StatusCode)

	_, err := s.Workspace().SetBuffer(workspace.BufferHTML, "<h1>saved</h1>")
	require.NoError(t, err)

	saved := doJSON(t, srv, http.MethodPost, "/api/project/save", saveRequest{Name: "demo"})
	require.Equal(t, http.StatusCreated, saved.StatusCode)

	_, err = s.Workspace().SetBuffer(workspace.BufferHTML, "<h1>changed</h1>")
	require.NoError(t, err)

	loaded := doJSON(t, srv, http.MethodPost, "/api/project/load", nil)
	require.Equal(t, http.StatusOK, loaded.StatusCode)

	html, err := s.Workspace().Buffer(workspace.BufferHTML)
	require.NoError(t, err)
	assert.Equal(t, "<h1>saved</h1>", html)

	list := doJSON(t, srv, http.MethodGet, "/api/projects", nil)
	var projects []projectSummary
	require.NoError(t, json.NewDecoder(list.Body).Decode(&projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "demo", projects[0].Name)
}

func TestLoadProjectKeepsMute(t *testing.T) {
	s, srv := newTestServer(t)

	muted := doJSON(t, srv, http.MethodPut, "/api/settings",
		map[string]any{"sound": map[string]any{"soundMuted": true}})
	require.Equal(t, http.StatusOK, muted.StatusCode)
	require.True(t, s.Workspace().Settings().Sound.Muted)

	saved := doJSON(t, srv, http.MethodPost, "/api/project/save", saveRequest{Name: "quiet"})
	require.Equal(t, http.StatusCreated, saved.StatusCode)

	loaded := doJSON(t, srv, http.MethodPost, "/api/project/load", nil)
	require.Equal(t, http.StatusOK, loaded.StatusCode)
	assert.True(t, s.Workspace().Settings().Sound.Muted)
	assert.True(t, s.sound.Settings().Muted)
	assert.Equal(t, workspace.DefaultSettings().Sound.Kind, s.Workspace().Settings().Sound.Kind)
}

func TestSaveNotifiesEditors(t *testing.T) {
	_, srv := newTestServer(t)
	editor := dialPath(t, srv, "/ws/editor")
	readType(t, editor, MessageState)

	doJSON(t, srv, http.MethodPost, "/api/project/save", nil)

	n := readType(t, editor, MessageNotification)
	assert.Equal(t, LevelSuccess, n["level"])
	assert.Equal(t, "messages.saved", n["key"])
	assert.Equal(t, "Project saved successfully", n["message"])
}

func TestExportArchive(t *testing.T) {
	s, srv := newTestServer(t)
	_, err := s.Workspace().SetBuffer(workspace.BufferSCSS, "$c: blue;\np { color: $c; }")
	require.NoError(t, err)

	resp := doJSON(t, srv, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), project.ArchiveName)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	members := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		members[f.Name] = string(content)
	}
	require.Len(t, members, 3)
	assert.Contains(t, members[project.IndexFile], workspace.DefaultDocument().HTML)
	assert.Contains(t, members[project.StyleFile], "color: blue")
	assert.NotContains(t, members[project.StyleFile], "color: $c")
}

func TestAutotypeSession(t *testing.T) {
	s, srv := newTestServer(t)

	pause := doJSON(t, srv, http.MethodPost, "/api/autotype/pause", nil)
	assert.Equal(t, http.StatusConflict, pause.StatusCode)

	empty := doJSON(t, srv, http.MethodPost, "/api/autotype/start", autotypeRequest{Script: "  ", Target: "html"})
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)

	editor := dialPath(t, srv, "/ws/editor")
	readType(t, editor, MessageState)

	script := "<b>" + strings.Repeat("ok", 25) + "</b>"
	start := doJSON(t, srv, http.MethodPost, "/api/autotype/start",
		autotypeRequest{Script: script, Target: "html", CharsPerSecond: 100})
	require.Equal(t, http.StatusAccepted, start.StatusCode)

	again := doJSON(t, srv, http.MethodPost, "/api/autotype/start",
		autotypeRequest{Script: "x", Target: "html", CharsPerSecond: 100})
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	n := readType(t, editor, MessageNotification)
	assert.Equal(t, "messages.typingCompleted", n["key"])

	html, err := s.Workspace().Buffer(workspace.BufferHTML)
	require.NoError(t, err)
	assert.Equal(t, script, html)
}

func TestUpdateSettings(t *testing.T) {
	s, srv := newTestServer(t)

	bad := doJSON(t, srv, http.MethodPut, "/api/settings", map[string]any{"fontSize": 30})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	ok := doJSON(t, srv, http.MethodPut, "/api/settings", map[string]any{"theme": "light"})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	assert.Equal(t, "light", s.Workspace().Settings().Theme)
	assert.Equal(t, workspace.DefaultSettings().FontSize, s.Workspace().Settings().FontSize)
}

func TestEditorPageLanguage(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/?lang=ar", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dir="rtl"`)
	assert.Contains(t, string(body), "حفظ المشروع")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	en, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer en.Body.Close()
	body, err = io.ReadAll(en.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dir="ltr"`)
	assert.Contains(t, string(body), `sandbox="allow-scripts`)
}

func TestShutdownReleasesContext(t *testing.T) {
	s, srv := newTestServer(t)
	id := s.Channel().ContextID()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, preview.StateUninitialized, s.Channel().State())
	_, err := s.host.Bind(ctx, []byte("<html></html>"))
	assert.Error(t, err)

	resp := doJSON(t, srv, http.MethodGet, previewURL(id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "projects.json")
	store, err := project.OpenStore(cfg.Storage.Driver, cfg.Storage.Path)
	require.NoError(t, err)
	defer store.Close()

	s, err := New(cfg, store, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
