package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Credentials is what a CredentialStore keeps between runs.
type Credentials struct {
	Token string      `yaml:"token"`
	User  *StoredUser `yaml:"user,omitempty"`
}

// StoredUser is the part of the signed-in user kept on disk.
type StoredUser struct {
	ID       uint   `yaml:"id"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
}

// CredentialStore persists the session. Load returns nil, nil when nothing is stored.
type CredentialStore interface {
	Load() (*Credentials, error)
	Save(*Credentials) error
	Clear() error
}

// FileStore keeps credentials in a YAML file readable only by the owner.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// DefaultFileStore stores credentials under the user config directory.
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(dir, "chronicle", "credentials.yml")), nil
}

func (f *FileStore) Load() (*Credentials, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", f.Path, err)
	}
	if creds.Token == "" {
		return nil, nil
	}
	return &creds, nil
}

// Save writes creds atomically with 0600 permissions.
func (f *FileStore) Save(creds *Credentials) error {
	if creds == nil {
		return f.Clear()
	}
	raw, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

func (m *MemoryStore) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

func (m *MemoryStore) Save(creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if creds == nil {
		m.creds = nil
		return nil
	}
	c := *creds
	m.creds = &c
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save(nil)
}
