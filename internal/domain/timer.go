package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ActiveTimer is the single open time registration of the current user.
// The server assigns ID and StartedAt; the client never fabricates one.
type ActiveTimer struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"projectId"`
	StartedAt time.Time `json:"startTijd"`
}

// TimeEntry is a historical time registration. EndedAt is nil while the
// entry is still open.
type TimeEntry struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"projectId"`
	StartedAt time.Time  `json:"startTijd"`
	EndedAt   *time.Time `json:"eindTijd,omitempty"`
}

// Closed reports whether the entry has an end instant.
func (e TimeEntry) Closed() bool {
	return e.EndedAt != nil
}

// DurationSeconds returns the clamped duration of the entry. Open entries
// are measured against now.
func (e TimeEntry) DurationSeconds(now time.Time) int64 {
	end := now
	if e.EndedAt != nil {
		end = *e.EndedAt
	}
	return ElapsedSeconds(e.StartedAt, end)
}

// ElapsedSeconds returns max(0, floor((end-start)/1s)). Server and client
// clocks drift, so a negative span is reported as zero.
func ElapsedSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatHMS renders seconds as zero padded HH:MM:SS. Hours are not wrapped
// at 24.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// localLayout is how the backend writes instants when it omits the offset.
const localLayout = "2006-01-02T15:04:05"

// ParseServerTime parses an instant sent by the API. Values without an
// offset are UTC.
func ParseServerTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse server time %q: %w", s, err)
	}
	return t, nil
}

// serverTime decodes with ParseServerTime.
type serverTime struct {
	time.Time
}

func (t *serverTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseServerTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// UnmarshalJSON accepts start instants with or without an offset.
func (t *ActiveTimer) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int64      `json:"id"`
		ProjectID int64      `json:"projectId"`
		StartedAt serverTime `json:"startTijd"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ActiveTimer{ID: raw.ID, ProjectID: raw.ProjectID, StartedAt: raw.StartedAt.Time}
	return nil
}

// UnmarshalJSON accepts instants with or without an offset.
func (e *TimeEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int64       `json:"id"`
		ProjectID int64       `json:"projectId"`
		StartedAt serverTime  `json:"startTijd"`
		EndedAt   *serverTime `json:"eindTijd"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = TimeEntry{ID: raw.ID, ProjectID: raw.ProjectID, StartedAt: raw.StartedAt.Time}
	if raw.EndedAt != nil && !raw.EndedAt.IsZero() {
		end := raw.EndedAt.Time
		e.EndedAt = &end
	}
	return nil
}
