package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubContext struct {
	id    string
	mu    sync.Mutex
	posts []preview.Update
}

func (s *stubContext) ID() string { return s.id }

func (s *stubContext) Post(u preview.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, u)
	return nil
}

func (s *stubContext) Release() {}

func (s *stubContext) drain() []preview.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.posts
	s.posts = nil
	return out
}

type stubBinder struct {
	bound []*stubContext
}

func (b *stubBinder) Bind(ctx context.Context, doc []byte) (preview.RenderingContext, error) {
	sc := &stubContext{id: fmt.Sprintf("ctx-%d", len(b.bound)+1)}
	b.bound = append(b.bound, sc)
	return sc, nil
}

func (b *stubBinder) current() *stubContext { return b.bound[len(b.bound)-1] }

type stubCompiler struct{}

func (stubCompiler) CompileStyles(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return "compiled-css(" + s + ")"
}

func (stubCompiler) CompileScript(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return "compiled-js(" + s + ")"
}

// newReadyWorkspace returns a workspace whose rendering context has
// completed its handshake, with the full push already drained.
func newReadyWorkspace(t *testing.T) (*Workspace, *stubBinder) {
	t.Helper()
	binder := &stubBinder{}
	ch, err := preview.NewChannel(binder, nil, nil)
	require.NoError(t, err)
	require.NoError(t, ch.Init(context.Background()))

	ws := New(ch, stubCompiler{}, nil)
	require.NoError(t, ws.ContextReady(binder.current().id))
	require.Len(t, binder.current().drain(), 1)
	return ws, binder
}

func TestHTMLEditSendsMarkupOnly(t *testing.T) {
	ws, binder := newReadyWorkspace(t)

	for _, text := range []string{"<p>1</p>", "<p>12</p>", ""} {
		changed, err := ws.SetBuffer(BufferHTML, text)
		require.NoError(t, err)
		assert.True(t, changed)

		posts := binder.current().drain()
		require.Len(t, posts, 1)
		require.NotNil(t, posts[0].MarkupText)
		assert.Equal(t, text, *posts[0].MarkupText)
		assert.Nil(t, posts[0].StyleText)
		assert.Nil(t, posts[0].ScriptText)
	}
}

func TestStyleEditsSendStyleAndScript(t *testing.T) {
	for _, b := range []Buffer{BufferCSS, BufferSCSS, BufferJavaScript, BufferTypeScript} {
		t.Run(string(b), func(t *testing.T) {
			ws, binder := newReadyWorkspace(t)

			_, err := ws.SetBuffer(b, "x")
			require.NoError(t, err)

			posts := binder.current().drain()
			require.Len(t, posts, 1)
			assert.Nil(t, posts[0].MarkupText)
			require.NotNil(t, posts[0].StyleText)
			require.NotNil(t, posts[0].ScriptText)
			a := ws.Artifact()
			assert.Equal(t, a.CSS, *posts[0].StyleText)
			assert.Equal(t, a.JS, *posts[0].ScriptText)
		})
	}
}

func TestSecondaryLanguageTakesPrecedence(t *testing.T) {
	ws, binder := newReadyWorkspace(t)

	_, err := ws.SetBuffer(BufferCSS, "p { color: blue; }")
	require.NoError(t, err)
	_, err = ws.SetBuffer(BufferSCSS, "$c: red; p { color: $c; }")
	require.NoError(t, err)

	posts := binder.current().drain()
	require.Len(t, posts, 2)
	assert.Equal(t, "p { color: blue; }", *posts[0].StyleText)
	assert.Equal(t, "compiled-css($c: red; p { color: $c; })", *posts[1].StyleText)

	_, err = ws.SetBuffer(BufferSCSS, "   ")
	require.NoError(t, err)
	assert.Equal(t, "p { color: blue; }", ws.Artifact().CSS, "blank scss falls back to css")

	_, err = ws.SetBuffer(BufferTypeScript, "let n: number = 1")
	require.NoError(t, err)
	assert.Equal(t, "compiled-js(let n: number = 1)", ws.Artifact().JS)
}

func TestIdenticalEditIsNotAnEdit(t *testing.T) {
	ws, binder := newReadyWorkspace(t)
	events := ws.Watch()

	changed, err := ws.SetBuffer(BufferHTML, DefaultDocument().HTML)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, binder.current().drain())
	assert.Empty(t, events)
}

func TestUnknownBuffer(t *testing.T) {
	ws, _ := newReadyWorkspace(t)

	_, err := ws.SetBuffer("markdown", "x")
	assert.ErrorIs(t, err, errors.ErrUnknownBuffer)
	_, err = ws.Buffer("markdown")
	assert.ErrorIs(t, err, errors.ErrUnknownBuffer)
}

func TestLibraryChangeLosesNoEdits(t *testing.T) {
	ws, binder := newReadyWorkspace(t)
	ctx := context.Background()

	changed, err := ws.AddLibrary(ctx, "https://unpkg.com/lodash@4/lodash.min.js")
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, binder.bound, 2)
	assert.Equal(t, preview.StateLoading, ws.Channel().State())

	// Edits during loading are dropped by the channel...
	_, err = ws.SetBuffer(BufferHTML, "<h1>while loading</h1>")
	require.NoError(t, err)
	_, err = ws.SetBuffer(BufferSCSS, "h1 { margin: 0 }")
	require.NoError(t, err)
	_, err = ws.SetBuffer(BufferJavaScript, "console.log(1)")
	require.NoError(t, err)
	assert.Empty(t, binder.current().drain())

	// ...and the full push at readiness carries all of them.
	require.NoError(t, ws.ContextReady(binder.current().id))
	posts := binder.current().drain()
	require.Len(t, posts, 1)
	assert.True(t, posts[0].IsFull())
	assert.Equal(t, "<h1>while loading</h1>", *posts[0].MarkupText)
	assert.Equal(t, "compiled-css(h1 { margin: 0 })", *posts[0].StyleText)
	assert.Equal(t, "console.log(1)", *posts[0].ScriptText)

	assert.ErrorIs(t, ws.ContextReady(binder.current().id), errors.ErrStaleContext)
	assert.Empty(t, binder.current().drain())
}

func TestLibraryNoOps(t *testing.T) {
	ws, binder := newReadyWorkspace(t)
	ctx := context.Background()
	ref := "https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css"

	_, err := ws.AddLibrary(ctx, ref)
	require.NoError(t, err)
	changed, err := ws.AddLibrary(ctx, ref)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = ws.RemoveLibrary(ctx, "https://example.com/missing.js")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, binder.bound, 2)
	assert.Equal(t, []string{ref}, ws.Libraries())
}

func TestWatchReceivesEvents(t *testing.T) {
	ws, _ := newReadyWorkspace(t)
	events := ws.Watch()
	defer ws.UnWatch(events)

	_, err := ws.SetBufferFrom(BufferCSS, "a{}", "client-1")
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, EventBufferChanged, ev.Type)
		assert.Equal(t, BufferCSS, ev.Buffer)
		assert.Equal(t, "a{}", ev.Text)
		assert.Equal(t, "client-1", ev.Origin)
		assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestUnWatchClosesChannel(t *testing.T) {
	ws := New(nil, nil, nil)
	events := ws.Watch()
	ws.UnWatch(events)
	_, ok := <-events
	assert.False(t, ok)
}

func TestLoadCoalescesIntoOneUpdate(t *testing.T) {
	ws, binder := newReadyWorkspace(t)

	snap := ws.Snapshot()
	snap.Document.HTML = "<main></main>"
	snap.Document.CSS = "main{}"
	snap.Settings.Theme = "light"
	require.NoError(t, ws.Load(context.Background(), snap))

	posts := binder.current().drain()
	require.Len(t, posts, 1)
	assert.True(t, posts[0].IsFull())
	assert.Equal(t, "<main></main>", *posts[0].MarkupText)
	assert.Equal(t, "main{}", *posts[0].StyleText)
	assert.Equal(t, "light", ws.Settings().Theme)
	assert.Len(t, binder.bound, 1, "same libraries do not rebind")
}

func TestLoadWithNewLibrariesRebinds(t *testing.T) {
	ws, binder := newReadyWorkspace(t)

	snap := ws.Snapshot()
	snap.Document.HTML = "<b>loaded</b>"
	snap.Libraries = []string{"https://unpkg.com/vue@3/dist/vue.global.prod.js"}
	require.NoError(t, ws.Load(context.Background(), snap))

	require.Len(t, binder.bound, 2)
	assert.Empty(t, binder.current().drain())
	require.NoError(t, ws.ContextReady(binder.current().id))
	posts := binder.current().drain()
	require.Len(t, posts, 1)
	assert.Equal(t, "<b>loaded</b>", *posts[0].MarkupText)
}

func TestLoadRejectsInvalidSnapshot(t *testing.T) {
	ws, _ := newReadyWorkspace(t)
	before := ws.Snapshot()

	bad := before
	bad.Document.HTML = "changed"
	bad.Libraries = []string{"javascript:alert(1)"}
	assert.ErrorIs(t, ws.Load(context.Background(), bad), errors.ErrInvalidLibrary)

	bad = before
	bad.Document.HTML = "changed"
	bad.Settings.FontSize = 99
	assert.True(t, errors.IsValidation(ws.Load(context.Background(), bad)))

	assert.Equal(t, before, ws.Snapshot())
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		valid  bool
	}{
		{"defaults", func(*Settings) {}, true},
		{"light theme", func(s *Settings) { s.Theme = "light" }, true},
		{"bad theme", func(s *Settings) { s.Theme = "solarized" }, false},
		{"min font", func(s *Settings) { s.FontSize = MinFontSize }, true},
		{"font too small", func(s *Settings) { s.FontSize = 9 }, false},
		{"font too large", func(s *Settings) { s.FontSize = 25 }, false},
		{"bad family", func(s *Settings) { s.FontFamily = "Comic Sans" }, false},
		{"soft sound", func(s *Settings) { s.Sound.Kind = sound.KindSoft }, true},
		{"bad sound", func(s *Settings) { s.Sound.Kind = "bell" }, false},
		{"loud", func(s *Settings) { s.Sound.Volume = 1.5 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if tt.valid {
				assert.NoError(t, s.Validate())
			} else {
				assert.Error(t, s.Validate())
			}
		})
	}
}

func TestParseBuffer(t *testing.T) {
	for in, want := range map[string]Buffer{
		"html": BufferHTML, "CSS": BufferCSS, "scss": BufferSCSS,
		"js": BufferJavaScript, "javascript": BufferJavaScript,
		"ts": BufferTypeScript, " typescript ": BufferTypeScript,
	} {
		got, err := ParseBuffer(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBuffer("less")
	assert.ErrorIs(t, err, errors.ErrUnknownBuffer)
}

func TestHeadlessWorkspace(t *testing.T) {
	ws := New(nil, nil, nil)

	changed, err := ws.SetBuffer(BufferSCSS, "$x: 1px;\na { top: $x; }")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, ws.Artifact().CSS, "top: 1px")

	assert.ErrorIs(t, ws.ContextReady("any"), errors.ErrChannelUnavailable)
	_, err = ws.AddLibrary(context.Background(), "https://a.example.com/a.js")
	assert.ErrorIs(t, err, errors.ErrChannelUnavailable)
	assert.Empty(t, ws.Snapshot().Libraries)
}

func TestReplayDeliversCurrentFullUpdate(t *testing.T) {
	ws, _ := newReadyWorkspace(t)
	_, err := ws.SetBuffer(BufferHTML, "<h1>late</h1>")
	require.NoError(t, err)
	_, err = ws.SetBuffer(BufferTypeScript, "let a: number = 1")
	require.NoError(t, err)

	var got preview.Update
	ws.Replay(func(u preview.Update) { got = u })

	require.True(t, got.IsFull())
	assert.Equal(t, "<h1>late</h1>", *got.MarkupText)
	assert.Equal(t, "compiled-js(let a: number = 1)", *got.ScriptText)
	assert.Equal(t, ws.FullUpdate(), got)
}

func TestCommentOnlySecondaryBufferStillWins(t *testing.T) {
	doc := Document{
		CSS:        "body { color: red; }",
		SCSS:       "// theme goes here",
		JavaScript: "console.log(1)",
		TypeScript: "// types later",
	}

	a := Effective(doc, nil)
	assert.Equal(t, compiler.CompileStyles(doc.SCSS), a.CSS)
	assert.NotContains(t, a.CSS, "color: red")
	assert.Equal(t, compiler.CompileScript(doc.TypeScript), a.JS)
	assert.NotContains(t, a.JS, "console.log")

	doc.SCSS, doc.TypeScript = " \n\t", ""
	a = Effective(doc, nil)
	assert.Equal(t, doc.CSS, a.CSS)
	assert.Equal(t, doc.JavaScript, a.JS)
}
