package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store keeps small JSON records at <basePath>/<collection>/<key>.json.
// Records are replaced atomically so a crash mid write leaves the previous
// credential or cache entry intact.
type Store struct {
	basePath string
	perm     os.FileMode
	mu       sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithFileMode sets the permission bits for written records. Stores that
// hold credentials use 0600, which also makes their directories 0700.
func WithFileMode(perm os.FileMode) Option {
	return func(s *Store) {
		s.perm = perm
	}
}

// NewStore creates a record store rooted at basePath.
func NewStore(basePath string, opts ...Option) (*Store, error) {
	s := &Store{basePath: basePath, perm: 0644}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(basePath, s.dirMode()); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return s, nil
}

// Save writes a record through a temp file that is renamed into place.
func (s *Store) Save(collection, key string, data any) error {
	if err := validKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, collection)
	if err := os.MkdirAll(dir, s.dirMode()); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := os.Chmod(tmpPath, s.perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod file: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(collection, key)); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Load decodes a record into data. A missing record is ErrNotFound.
func (s *Store) Load(collection, key string, data any) error {
	if err := validKey(collection, key); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(collection, key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Delete removes a record. A missing record is ErrNotFound.
func (s *Store) Delete(collection, key string) error {
	if err := validKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(collection, key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Store) path(collection, key string) string {
	return filepath.Join(s.basePath, collection, key+".json")
}

func (s *Store) dirMode() os.FileMode {
	if s.perm&0077 == 0 {
		return 0700
	}
	return 0755
}

// validKey keeps records inside their collection; cookie names end up in
// keys.
func validKey(collection, key string) error {
	for _, part := range []string{collection, key} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}
	return nil
}
