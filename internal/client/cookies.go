// Package client is the portal's Go client: a persistent cookie jar, the JSON API client, the
// auth guard that protects views and the activity tracker that expires idle sessions.
package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const sessionFileName = "session.yaml"

// CookieStore holds the session cookies between requests (and between CLI invocations).
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Remove(names ...string) error
	// All returns a copy of every stored cookie.
	All() map[string]string
}

// MemoryStore is a CookieStore that lives for the process.
type MemoryStore struct {
	mu      sync.RWMutex
	cookies map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cookies: make(map[string]string)}
}

func (s *MemoryStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cookies[name]
	return v, ok
}

func (s *MemoryStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[name] = value
	return nil
}

func (s *MemoryStore) Remove(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		delete(s.cookies, n)
	}
	return nil
}

func (s *MemoryStore) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

// fileState is the on-disk form of a FileStore.
type fileState struct {
	Cookies map[string]string `yaml:"cookies"`
}

// FileStore is a CookieStore persisted as YAML. Every write rewrites the file atomically with mode 0600.
type FileStore struct {
	path string
	mem  *MemoryStore
	mu   sync.Mutex // serializes file writes
}

// DefaultSessionPath returns ~/.socportal/session.yaml.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".socportal", sessionFileName), nil
}

// OpenFileStore loads path if it exists. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, mem: NewMemoryStore()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var st fileState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	for k, v := range st.Cookies {
		s.mem.cookies[k] = v
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(name string) (string, bool) { return s.mem.Get(name) }

func (s *FileStore) All() map[string]string { return s.mem.All() }

func (s *FileStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.Set(name, value)
	return s.flush()
}

func (s *FileStore) Remove(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.Remove(names...)
	return s.flush()
}

func (s *FileStore) flush() error {
	data, err := yaml.Marshal(fileState{Cookies: s.mem.All()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
