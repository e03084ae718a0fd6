package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/timecard/internal/cache"
	"github.com/felixgeelhaar/timecard/internal/domain"
)

func TestCacheStore_Projects(t *testing.T) {
	store := NewCacheStore(openTestDB(t))
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, _, err := store.LoadProjects(); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("LoadProjects() on empty db error = %v, want ErrMiss", err)
	}

	projects := []domain.Project{
		{ID: 9, Name: "Renovatie", Client: "Jansen", HourlyRate: 55.5, IsActive: true},
		{ID: 2, Name: "Dakkapel", Client: "De Vries", HourlyRate: 60, IsActive: false},
	}
	if err := store.SaveProjects(projects, at); err != nil {
		t.Fatalf("SaveProjects() error = %v", err)
	}

	got, cachedAt, err := store.LoadProjects()
	if err != nil {
		t.Fatalf("LoadProjects() error = %v", err)
	}
	if len(got) != 2 || got[0] != projects[0] || got[1] != projects[1] {
		t.Errorf("LoadProjects() = %+v, want %+v in server order", got, projects)
	}
	if !cachedAt.Equal(at) {
		t.Errorf("cachedAt = %v, want %v", cachedAt, at)
	}

	// a later save replaces the list
	if err := store.SaveProjects(projects[1:], at.Add(time.Hour)); err != nil {
		t.Fatalf("SaveProjects() error = %v", err)
	}
	got, _, _ = store.LoadProjects()
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("LoadProjects() after replace = %+v", got)
	}
}

func TestCacheStore_Entries(t *testing.T) {
	store := NewCacheStore(openTestDB(t))
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := at.Add(-time.Hour)

	entries := []domain.TimeEntry{
		{ID: 1, ProjectID: 5, StartedAt: at.Add(-2 * time.Hour), EndedAt: &end},
		{ID: 2, ProjectID: 5, StartedAt: at.Add(-30 * time.Minute)},
	}
	if err := store.SaveEntries(entries, at); err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}

	got, _, err := store.LoadEntries()
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Closed() || !got[0].EndedAt.Equal(end) || !got[0].StartedAt.Equal(entries[0].StartedAt) {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Closed() {
		t.Error("open entry came back closed")
	}
}

func TestCacheStore_Clear(t *testing.T) {
	store := NewCacheStore(openTestDB(t))
	at := time.Now()
	store.SaveProjects([]domain.Project{{ID: 1, Name: "a"}}, at)
	store.SaveEntries([]domain.TimeEntry{{ID: 1, ProjectID: 1, StartedAt: at}}, at)

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, _, err := store.LoadProjects(); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("LoadProjects() after clear error = %v", err)
	}
	if _, _, err := store.LoadEntries(); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("LoadEntries() after clear error = %v", err)
	}
}
