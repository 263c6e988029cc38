package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ConfigError is a malformed or unwritable settings file
type ConfigError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DefaultPath places the settings file beside the running executable
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// Store reads and writes the settings file. An empty path keeps settings in memory only.
type Store struct {
	path string
	mu   sync.Mutex
	last []byte // bytes of the most recent save, to recognise our own writes
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file; a missing file yields defaults
func (s *Store) Load() (Settings, error) {
	settings := Default()
	if s.path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, &ConfigError{Op: "read", Path: s.path, Err: err}
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		return Default(), &ConfigError{Op: "parse", Path: s.path, Err: err}
	}
	if err := settings.Schedule().Validate(); err != nil {
		return Default(), &ConfigError{Op: "validate", Path: s.path, Err: err}
	}
	return settings, nil
}

// Save writes the settings file atomically
func (s *Store) Save(settings Settings) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return &ConfigError{Op: "encode", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 确保配置目录存在
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &ConfigError{Op: "write", Path: s.path, Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &ConfigError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &ConfigError{Op: "write", Path: s.path, Err: err}
	}

	s.last = data
	return nil
}

// ownWrite reports whether the file still holds exactly what Save last wrote
func (s *Store) ownWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	return string(data) == string(s.last)
}
