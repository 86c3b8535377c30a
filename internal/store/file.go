package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var _ KV = (*FileKV)(nil)

// FileKV keeps every key in memory and rewrites one JSON file on each
// change.
type FileKV struct {
	mu       sync.RWMutex
	values   map[string]string
	filePath string
}

// NewFileKV creates a FileKV, loading persisted state from filePath.
func NewFileKV(filePath string) (*FileKV, error) {
	s := &FileKV{
		values:   make(map[string]string),
		filePath: filePath,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *FileKV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = string(value)
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *FileKV) Close() error { return nil }

// load reads the JSON file into memory. A missing file starts empty.
func (s *FileKV) load() error {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return fmt.Errorf("decoding %s: %w", s.filePath, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return nil
}

// flush writes the in-memory state to disk through a temp file. Must be
// called with mu held.
func (s *FileKV) flush() error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}
