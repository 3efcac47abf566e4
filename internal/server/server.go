// Package server hosts the playground: the editor page and API, the
// rendering contexts the preview iframe loads, and the WebSocket protocol
// that keeps both in step with the workspace.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/codepad/internal/autotype"
	"github.com/conneroisu/codepad/internal/compiler"
	"github.com/conneroisu/codepad/internal/config"
	"github.com/conneroisu/codepad/internal/errors"
	"github.com/conneroisu/codepad/internal/i18n"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/preview"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/watcher"
	"github.com/conneroisu/codepad/internal/websocket"
	"github.com/conneroisu/codepad/internal/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the graceful shutdown started when Start's context
// is cancelled.
const ShutdownTimeout = 5 * time.Second

// Server wires the workspace, its preview channel and the editor together.
type Server struct {
	cfg    *config.Config
	logger logging.Logger
	lang   i18n.Language

	hub       *websocket.Hub
	host      *contextHost
	channel   *preview.Channel
	compiler  *compiler.Compiler
	workspace *workspace.Workspace
	sound     *sound.Unit
	typist    *autotype.Simulator
	store     project.Store
	dirSync   *watcher.DirSync

	events      <-chan workspace.Event
	forwardDone chan struct{}

	router       chi.Router
	serverMutex  sync.Mutex
	httpServer   *http.Server
	shutdownOnce sync.Once
	shuttingDown atomic.Bool
	startedAt    time.Time
}

// New builds a server from cfg. store receives saved projects and stays
// owned by the caller. A rendering context is bound immediately; if that
// fails the server still starts, with the preview degraded.
func New(cfg *config.Config, store project.Store, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	lang, err := i18n.ParseLanguage(cfg.Editor.Language)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger.WithComponent("server"),
		lang:        lang,
		store:       store,
		forwardDone: make(chan struct{}),
		startedAt:   time.Now(),
	}

	hubOpts := websocket.DefaultOptions()
	hubOpts.MessagesPerSecond = cfg.WebSocket.MessagesPerSecond
	hubOpts.Burst = cfg.WebSocket.Burst
	hubOpts.OriginPatterns = originPatterns(cfg.Server.AllowedOrigins)
	s.hub = websocket.NewHub(hubOpts, logger)
	s.hub.OnConnect(s.handleClientConnect)
	s.hub.OnMessage(s.handleClientMessage)

	s.compiler, err = compiler.New(cfg.Compiler.Options(), logger)
	if err != nil {
		return nil, err
	}

	s.host = newContextHost(s.hub, cfg.Preview.MaxDocumentBytes, logger)
	s.host.announce = s.announcePreviewContext

	s.channel, err = preview.NewChannel(s.host, cfg.Preview.Libraries, logger)
	if err != nil {
		return nil, err
	}
	s.channel.OnStateChange(s.previewStateChanged)

	s.workspace = workspace.New(s.channel, s.compiler, logger)
	settings := cfg.EditorSettings()
	if err := s.workspace.UpdateSettings(settings); err != nil {
		return nil, err
	}

	s.sound = sound.NewUnit(s.soundOpener, settings.Sound, cfg.Sound.SampleRate, logger)
	s.typist = autotype.New(s.workspace, s.sound, cfg.AutotypeOptions(), logger)
	s.typist.OnChange(s.autotypeChanged)

	if cfg.Watch.Enabled() {
		s.dirSync, err = watcher.NewDirSync(cfg.Watch.Dir, s.workspace, cfg.Watch.Debounce, logger)
		if err != nil {
			return nil, err
		}
	}

	// Degraded, not fatal.
	_ = s.channel.Init(context.Background())

	s.events = s.workspace.Watch()
	go s.forwardWorkspaceEvents(s.events)

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Workspace exposes the workspace the server drives.
func (s *Server) Workspace() *workspace.Workspace { return s.workspace }

// Channel exposes the preview channel.
func (s *Server) Channel() *preview.Channel { return s.channel }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(s.cfg.Server),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Bootstrap documents carry their own headers.
	r.Get("/preview/{id}", s.handlePreviewDocument)
	r.Get("/ws/preview/{id}", s.handlePreviewSocket)

	r.Group(func(r chi.Router) {
		r.Use(SecurityMiddleware(EditorSecurityConfig()))

		r.Get("/", s.handleEditorPage)
		r.Get("/health", s.handleHealth)
		r.Get("/ws/editor", s.handleEditorSocket)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.handleState)
			r.Put("/buffers/{buffer}", s.handleSetBuffer)

			r.Get("/libraries/catalog", s.handleLibraryCatalog)
			r.Post("/libraries", s.handleAddLibrary)
			r.Delete("/libraries", s.handleRemoveLibrary)

			r.Put("/settings", s.handleUpdateSettings)

			r.Post("/project/save", s.handleSaveProject)
			r.Post("/project/load", s.handleLoadProject)
			r.Get("/projects", s.handleListProjects)
			r.Get("/export", s.handleExport)

			r.Get("/autotype", s.handleAutotypeStatus)
			r.Post("/autotype/start", s.handleAutotypeStart)
			r.Post("/autotype/pause", s.handleAutotypePause)
			r.Post("/autotype/stop", s.handleAutotypeStop)
		})
	})

	return r
}

func (s *Server) handleEditorSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, editorTopic, nil)
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or serving fails. Directory
// sync, when configured, runs alongside.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.serverMutex.Lock()
	s.httpServer = httpServer
	s.serverMutex.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	if s.dirSync != nil {
		if err := s.dirSync.Seed(gctx); err != nil {
			s.logger.Warn(gctx, err, "Initial directory import failed", "dir", s.cfg.Watch.Dir)
		}
		g.Go(func() error { return s.dirSync.Run(gctx) })
	}

	addr := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "Codepad listening", "url", addr)
	if s.cfg.Server.Open {
		go s.openBrowser(addr)
	}

	return g.Wait()
}

// Shutdown stops auto-typing, disconnects every socket, releases the
// rendering context and stops the HTTP server. It is safe to call more than
// once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.shuttingDown.Store(true)

		if err := s.typist.Close(); err != nil {
			s.logger.Warn(ctx, err, "Failed to stop auto-typing")
		}

		s.host.close()
		s.channel.Close()

		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "WebSocket hub did not drain")
		}

		s.workspace.UnWatch(s.events)
		<-s.forwardDone

		if err := s.sound.Close(); err != nil {
			s.logger.Warn(ctx, err, "Failed to close sound output")
		}

		s.serverMutex.Lock()
		httpServer := s.httpServer
		s.serverMutex.Unlock()
		if httpServer != nil {
			shutdownErr = httpServer.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) openBrowser(target string) {
	time.Sleep(100 * time.Millisecond)

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		s.logger.Warn(context.Background(), err, "Refusing to open browser", "url", target)
		return
	}

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", u.String()).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String()).Start()
	case "darwin":
		err = exec.Command("open", u.String()).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to open browser", "url", target)
	}
}

// originPatterns turns allowed origins into host patterns for the
// WebSocket origin check.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, o)
		}
	}
	return patterns
}
