package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/codepad/internal/logging"
	"github.com/conneroisu/codepad/internal/project"
	"github.com/conneroisu/codepad/internal/workspace"
)

// SyncOrigin marks workspace edits made by directory sync.
const SyncOrigin = "watcher"

// DirSync mirrors the source files of a project directory into a
// workspace.
type DirSync struct {
	dir     string
	ws      *workspace.Workspace
	watcher *FileWatcher
	logger  logging.Logger
}

// NewDirSync prepares a sync of dir into ws.
func NewDirSync(dir string, ws *workspace.Workspace, debounce time.Duration, logger logging.Logger) (*DirSync, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fw, err := NewFileWatcher(debounce, logger)
	if err != nil {
		return nil, err
	}
	if err := fw.AddDir(dir); err != nil {
		fw.Stop()
		return nil, err
	}
	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(NameFilter(project.SourceFileNames()...))

	s := &DirSync{dir: dir, ws: ws, watcher: fw, logger: logger.WithComponent("dirsync")}
	fw.AddHandler(s.apply)
	return s, nil
}

// Seed copies every source file present in the directory into the
// workspace and adds the libraries referenced by index.html.
func (s *DirSync) Seed(ctx context.Context) error {
	imported, err := project.ImportDir(s.dir)
	if err != nil {
		return err
	}
	for _, name := range imported.Found {
		b, _ := project.BufferForFile(name)
		if _, err := s.ws.SetBufferFrom(b, imported.Document.Get(b), SyncOrigin); err != nil {
			return err
		}
	}
	for _, lib := range imported.Libraries {
		if _, err := s.ws.AddLibrary(ctx, lib); err != nil {
			s.logger.Warn(ctx, err, "Skipping library from index.html", "url", lib)
		}
	}
	s.logger.Info(ctx, "Seeded workspace from directory",
		"dir", s.dir,
		"files", len(imported.Found),
		"libraries", len(imported.Libraries),
	)
	return nil
}

// Run watches until ctx is done.
func (s *DirSync) Run(ctx context.Context) error {
	if err := s.watcher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.watcher.Stop()
}

// apply re-imports each changed file into its buffer. Deleted files leave
// the buffer as it was.
func (s *DirSync) apply(events []ChangeEvent) error {
	var firstErr error
	for _, ev := range events {
		if ev.Type == EventTypeDeleted || ev.Type == EventTypeRenamed {
			continue
		}
		b, text, err := project.ImportFile(ev.Path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		changed, err := s.ws.SetBufferFrom(b, text, SyncOrigin)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if changed {
			s.logger.Debug(context.Background(), "Buffer reloaded from disk",
				"buffer", string(b),
				"path", ev.Path,
			)
		}
	}
	return firstErr
}
