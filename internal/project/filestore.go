package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conneroisu/codepad/internal/errors"
)

// FileStore keeps the whole list as one JSON array. Every append rewrites
// the file through a temporary file and a rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}
	records = append(records, r)
	return s.writeLocked(records)
}

func (s *FileStore) Last(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, errors.ErrNoProjects
	}
	return records[len(records)-1], nil
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readLocked() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, storageError("reading project list", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, storageError("decoding project list", err).WithContext("path", s.path)
	}
	return records, nil
}

func (s *FileStore) writeLocked(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return storageError("encoding project list", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("creating storage directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return storageError("creating temp project list", err)
	}

	successful := false
	defer func() {
		if !successful {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageError("writing temp project list", err)
	}
	if err := tmp.Close(); err != nil {
		return storageError("closing temp project list", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return storageError(fmt.Sprintf("replacing %s", s.path), err)
	}

	successful = true
	return nil
}
