package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/gateway"
)

// mockSource is a test implementation of Source
type mockSource struct {
	projects []domain.Project
	entries  []domain.TimeEntry
	err      error
}

func (m *mockSource) Projects(context.Context) ([]domain.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.projects, nil
}

func (m *mockSource) TimeEntries(context.Context) ([]domain.TimeEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

var cachedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setupTestService(t *testing.T, src *mockSource) (*Service, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	svc := NewService(src, store, nil)
	svc.now = func() time.Time { return cachedAt }
	return svc, store
}

func TestService_Projects_FreshWritesCache(t *testing.T) {
	src := &mockSource{projects: []domain.Project{{ID: 1, Name: "Renovatie", IsActive: true}}}
	svc, store := setupTestService(t, src)

	snap, err := svc.Projects(context.Background())
	if err != nil {
		t.Fatalf("Projects() error = %v", err)
	}
	if snap.Stale || len(snap.Items) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	cached, at, err := store.LoadProjects()
	if err != nil {
		t.Fatalf("LoadProjects() error = %v", err)
	}
	if len(cached) != 1 || cached[0].Name != "Renovatie" || !at.Equal(cachedAt) {
		t.Errorf("cached = %+v at %v", cached, at)
	}
}

func TestService_Projects_FallsBackWhenUnreachable(t *testing.T) {
	src := &mockSource{projects: []domain.Project{{ID: 1, Name: "Renovatie"}}}
	svc, _ := setupTestService(t, src)
	if _, err := svc.Projects(context.Background()); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	src.err = fmt.Errorf("%w: dial tcp: refused", domain.ErrNetworkUnavailable)
	snap, err := svc.Projects(context.Background())
	if err != nil {
		t.Fatalf("Projects() error = %v", err)
	}
	if !snap.Stale || len(snap.Items) != 1 || !snap.CachedAt.Equal(cachedAt) {
		t.Errorf("snapshot = %+v, want stale cached copy", snap)
	}
}

func TestService_Projects_Errors(t *testing.T) {
	tests := []struct {
		name    string
		warm    bool
		err     error
		wantErr error
	}{
		{"unreachable with empty cache", false, fmt.Errorf("%w: refused", domain.ErrNetworkUnavailable), domain.ErrNetworkUnavailable},
		{"request failed is not masked", true, &gateway.RequestFailedError{Status: 500, Message: "boom"}, domain.ErrRequestFailed},
		{"session expired is not masked", true, domain.ErrSessionExpired, domain.ErrSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockSource{projects: []domain.Project{{ID: 1}}}
			svc, _ := setupTestService(t, src)
			if tt.warm {
				svc.Projects(context.Background())
			}

			src.err = tt.err
			_, err := svc.Projects(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Projects() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Entries(t *testing.T) {
	end := cachedAt.Add(time.Hour)
	src := &mockSource{entries: []domain.TimeEntry{{ID: 1, ProjectID: 2, StartedAt: cachedAt, EndedAt: &end}}}
	svc, _ := setupTestService(t, src)

	if _, err := svc.Entries(context.Background()); err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	src.err = domain.ErrNetworkUnavailable

	snap, err := svc.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if !snap.Stale || len(snap.Items) != 1 || !snap.Items[0].EndedAt.Equal(end) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestService_Clear(t *testing.T) {
	src := &mockSource{projects: []domain.Project{{ID: 1}}, entries: []domain.TimeEntry{{ID: 1}}}
	svc, store := setupTestService(t, src)
	svc.Projects(context.Background())
	svc.Entries(context.Background())

	if err := svc.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, _, err := store.LoadProjects(); !errors.Is(err, ErrMiss) {
		t.Errorf("LoadProjects() after clear error = %v, want ErrMiss", err)
	}
	if _, _, err := store.LoadEntries(); !errors.Is(err, ErrMiss) {
		t.Errorf("LoadEntries() after clear error = %v, want ErrMiss", err)
	}
	// clearing an empty cache is fine
	if err := svc.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}
