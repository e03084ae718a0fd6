package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/timecard/internal/cache"
	"github.com/felixgeelhaar/timecard/internal/domain"
)

// CacheStore implements cache.Store backed by SQLite. Every save replaces
// the whole list in one transaction.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a new SQLite-backed cache store.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

// SaveProjects replaces the cached project list.
func (s *CacheStore) SaveProjects(projects []domain.Project, at time.Time) error {
	return s.replace("cached_projects", func(tx *sql.Tx) error {
		for i, p := range projects {
			_, err := tx.Exec(`
				INSERT INTO cached_projects (id, name, client, hourly_rate, is_active, position, cached_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name=excluded.name, client=excluded.client, hourly_rate=excluded.hourly_rate,
					is_active=excluded.is_active, position=excluded.position, cached_at=excluded.cached_at`,
				p.ID, p.Name, p.Client, p.HourlyRate, p.IsActive, i, at.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert project %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// LoadProjects returns the cached project list in server order.
func (s *CacheStore) LoadProjects() ([]domain.Project, time.Time, error) {
	rows, err := s.db.Query(`
		SELECT id, name, client, hourly_rate, is_active, cached_at
		FROM cached_projects ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var (
		projects []domain.Project
		cachedAt time.Time
	)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Client, &p.HourlyRate, &p.IsActive, &cachedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if len(projects) == 0 {
		return nil, time.Time{}, cache.ErrMiss
	}
	return projects, cachedAt.UTC(), nil
}

// SaveEntries replaces the cached time entries.
func (s *CacheStore) SaveEntries(entries []domain.TimeEntry, at time.Time) error {
	return s.replace("cached_entries", func(tx *sql.Tx) error {
		for i, e := range entries {
			var ended sql.NullTime
			if e.EndedAt != nil {
				ended = sql.NullTime{Time: e.EndedAt.UTC(), Valid: true}
			}
			_, err := tx.Exec(`
				INSERT INTO cached_entries (id, project_id, started_at, ended_at, position, cached_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					project_id=excluded.project_id, started_at=excluded.started_at,
					ended_at=excluded.ended_at, position=excluded.position, cached_at=excluded.cached_at`,
				e.ID, e.ProjectID, e.StartedAt.UTC(), ended, i, at.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert entry %d: %w", e.ID, err)
			}
		}
		return nil
	})
}

// LoadEntries returns the cached time entries in server order.
func (s *CacheStore) LoadEntries() ([]domain.TimeEntry, time.Time, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, started_at, ended_at, cached_at
		FROM cached_entries ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var (
		entries  []domain.TimeEntry
		cachedAt time.Time
	)
	for rows.Next() {
		var (
			e     domain.TimeEntry
			ended sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.StartedAt, &ended, &cachedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan entry: %w", err)
		}
		e.StartedAt = e.StartedAt.UTC()
		if ended.Valid {
			t := ended.Time.UTC()
			e.EndedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if len(entries) == 0 {
		return nil, time.Time{}, cache.ErrMiss
	}
	return entries, cachedAt.UTC(), nil
}

// Clear drops both cached lists.
func (s *CacheStore) Clear() error {
	for _, table := range []string{"cached_projects", "cached_entries"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// replace empties table and refills it through fill in one transaction.
func (s *CacheStore) replace(table string, fill func(tx *sql.Tx) error) error {
	return s.db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		return fill(tx)
	})
}
