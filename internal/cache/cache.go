// Package cache keeps best-effort copies of read-only API data so lists
// can still be shown while the API is unreachable. Writes are never queued.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// ErrMiss is returned when nothing was cached yet.
var ErrMiss = errors.New("cache miss")

// Store persists cached lists. The JSON file store and the SQLite store
// both implement it.
type Store interface {
	SaveProjects(projects []domain.Project, at time.Time) error
	LoadProjects() ([]domain.Project, time.Time, error)
	SaveEntries(entries []domain.TimeEntry, at time.Time) error
	LoadEntries() ([]domain.TimeEntry, time.Time, error)
	// Clear drops everything, for example when the user changes.
	Clear() error
}

// Source is the remote side of the cache.
type Source interface {
	Projects(ctx context.Context) ([]domain.Project, error)
	TimeEntries(ctx context.Context) ([]domain.TimeEntry, error)
}

// Snapshot is a list together with where it came from.
type Snapshot[T any] struct {
	Items []T
	// Stale is set when the items come from the cache because the API was
	// unreachable.
	Stale    bool
	CachedAt time.Time
}

// Service reads through the cache.
type Service struct {
	src    Source
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a read-through cache service.
func NewService(src Source, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, store: store, now: time.Now, logger: logger}
}

// Projects returns the project list, falling back to the cached copy only
// when the API cannot be reached.
func (s *Service) Projects(ctx context.Context) (Snapshot[domain.Project], error) {
	return readThrough(ctx, s, "projects", s.src.Projects, s.store.LoadProjects, s.store.SaveProjects)
}

// Entries returns the time entries with the same fallback as Projects.
func (s *Service) Entries(ctx context.Context) (Snapshot[domain.TimeEntry], error) {
	return readThrough(ctx, s, "entries", s.src.TimeEntries, s.store.LoadEntries, s.store.SaveEntries)
}

// Clear drops all cached data.
func (s *Service) Clear() error {
	return s.store.Clear()
}

func readThrough[T any](
	ctx context.Context,
	s *Service,
	name string,
	fetch func(context.Context) ([]T, error),
	load func() ([]T, time.Time, error),
	save func([]T, time.Time) error,
) (Snapshot[T], error) {
	items, err := fetch(ctx)
	if err == nil {
		now := s.now()
		if saveErr := save(items, now); saveErr != nil {
			s.logger.WarnContext(ctx, "cache write failed", "list", name, "error", saveErr)
		}
		return Snapshot[T]{Items: items, CachedAt: now}, nil
	}

	// only an unreachable API is served from cache; a server that answered
	// with an error is reported as is
	if !errors.Is(err, domain.ErrNetworkUnavailable) {
		return Snapshot[T]{}, err
	}

	cached, at, loadErr := load()
	if loadErr != nil {
		if !errors.Is(loadErr, ErrMiss) {
			s.logger.WarnContext(ctx, "cache read failed", "list", name, "error", loadErr)
		}
		return Snapshot[T]{}, err
	}
	s.logger.InfoContext(ctx, "serving cached list", "list", name, "cached_at", at)
	return Snapshot[T]{Items: cached, Stale: true, CachedAt: at}, nil
}
