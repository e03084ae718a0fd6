package domain

import "testing"

func TestProjectName(t *testing.T) {
	projects := []Project{
		{ID: 5, Name: "Renovatie Dorpsstraat"},
		{ID: 7, Name: "Onderhoud"},
	}

	if got := ProjectName(projects, 7); got != "Onderhoud" {
		t.Errorf("ProjectName(7) = %q, want Onderhoud", got)
	}
	if got := ProjectName(projects, 99); got != UnknownProjectName {
		t.Errorf("ProjectName(99) = %q, want %q", got, UnknownProjectName)
	}
	if got := ProjectName(nil, 5); got != UnknownProjectName {
		t.Errorf("ProjectName(nil) = %q, want %q", got, UnknownProjectName)
	}
}

func TestPeriod_IsValid(t *testing.T) {
	for _, p := range []Period{PeriodWeek, PeriodMonth, PeriodYear} {
		if !p.IsValid() {
			t.Errorf("%q.IsValid() = false", p)
		}
	}
	if Period("day").IsValid() {
		t.Error(`"day".IsValid() = true`)
	}
}

func TestSession_Valid(t *testing.T) {
	id := &Identity{ID: "42", Email: "a@b.nl"}

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"empty", Session{}, true},
		{"authenticated", Session{Authenticated: true, Credential: "tok", Identity: id}, true},
		{"flag without identity", Session{Authenticated: true, Credential: "tok"}, false},
		{"data without flag", Session{Credential: "tok", Identity: id}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	var nilID *Identity
	if got := nilID.DisplayName(); got != "" {
		t.Errorf("nil DisplayName() = %q", got)
	}
	if got := (&Identity{ID: "42"}).DisplayName(); got != "42" {
		t.Errorf("DisplayName() = %q, want 42", got)
	}
	if got := (&Identity{ID: "42", Email: "a@b.nl"}).DisplayName(); got != "a@b.nl" {
		t.Errorf("DisplayName() = %q, want a@b.nl", got)
	}
}
