package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/storage/local"
)

const (
	collectionCache = "cache"
	keyProjects     = "projects"
	keyEntries      = "entries"
)

type record[T any] struct {
	Items    []T       `json:"items"`
	CachedAt time.Time `json:"cached_at"`
}

// FileStore keeps cached lists as JSON files.
type FileStore struct {
	store *local.Store
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a JSON file cache under basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	store, err := local.NewStore(basePath, local.WithFileMode(0600))
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &FileStore{store: store}, nil
}

func (f *FileStore) SaveProjects(projects []domain.Project, at time.Time) error {
	return f.store.Save(collectionCache, keyProjects, record[domain.Project]{Items: projects, CachedAt: at.UTC()})
}

func (f *FileStore) LoadProjects() ([]domain.Project, time.Time, error) {
	return loadRecord[domain.Project](f.store, keyProjects)
}

func (f *FileStore) SaveEntries(entries []domain.TimeEntry, at time.Time) error {
	return f.store.Save(collectionCache, keyEntries, record[domain.TimeEntry]{Items: entries, CachedAt: at.UTC()})
}

func (f *FileStore) LoadEntries() ([]domain.TimeEntry, time.Time, error) {
	return loadRecord[domain.TimeEntry](f.store, keyEntries)
}

// Clear removes every cached list.
func (f *FileStore) Clear() error {
	for _, key := range []string{keyProjects, keyEntries} {
		if err := f.store.Delete(collectionCache, key); err != nil && !errors.Is(err, local.ErrNotFound) {
			return err
		}
	}
	return nil
}

func loadRecord[T any](store *local.Store, key string) ([]T, time.Time, error) {
	var rec record[T]
	if err := store.Load(collectionCache, key, &rec); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, time.Time{}, ErrMiss
		}
		return nil, time.Time{}, err
	}
	return rec.Items, rec.CachedAt, nil
}
