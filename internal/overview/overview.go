// Package overview aggregates hours and mileage for a period and renders
// the recent entries list.
package overview

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// RecentLimit is how many entries the clock screen lists.
const RecentLimit = 5

// Source fetches the overview rows.
type Source interface {
	TimeOverview(ctx context.Context, period domain.Period) ([]domain.TimeSummary, error)
	MileageOverview(ctx context.Context, period domain.Period) ([]domain.MileageSummary, error)
}

// Totals are the summary figures of a period.
type Totals struct {
	Hours               float64 `json:"hours"`
	Revenue             float64 `json:"revenue"`
	Kilometers          float64 `json:"kilometers"`
	MileageCompensation float64 `json:"mileage_compensation"`
}

// Report is the overview of one period.
type Report struct {
	Period  domain.Period           `json:"period"`
	Hours   []domain.TimeSummary    `json:"hours"`
	Mileage []domain.MileageSummary `json:"mileage"`
	Totals  Totals                  `json:"totals"`
}

// Summarize computes the totals. Revenue is hours times the row rate;
// compensation uses the fixed per kilometer rate.
func Summarize(hours []domain.TimeSummary, mileage []domain.MileageSummary) Totals {
	var t Totals
	for _, h := range hours {
		t.Hours += h.Hours
		t.Revenue += h.Hours * h.Rate
	}
	for _, m := range mileage {
		t.Kilometers += m.Kilometers
	}
	t.MileageCompensation = t.Kilometers * domain.MileageRatePerKm
	return t
}

// Service builds reports.
type Service struct {
	src Source
}

// NewService creates an overview service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Report fetches both lists in parallel. Either failure fails the report.
func (s *Service) Report(ctx context.Context, period domain.Period) (*Report, error) {
	if !period.IsValid() {
		return nil, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}

	r := &Report{Period: period}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.src.TimeOverview(gctx, period)
		if err != nil {
			return fmt.Errorf("hours overview: %w", err)
		}
		r.Hours = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.src.MileageOverview(gctx, period)
		if err != nil {
			return fmt.Errorf("mileage overview: %w", err)
		}
		r.Mileage = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.Totals = Summarize(r.Hours, r.Mileage)
	return r, nil
}

// RecentEntry is one line of the recent entries list.
type RecentEntry struct {
	Entry           domain.TimeEntry `json:"entry"`
	ProjectName     string           `json:"project_name"`
	DurationSeconds int64            `json:"duration_seconds"`
	Duration        string           `json:"duration"`
}

// Recent returns the first limit entries in server order with their
// project names and durations. Open entries are measured against now and
// durations never go negative.
func Recent(entries []domain.TimeEntry, projects []domain.Project, now time.Time, limit int) []RecentEntry {
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]RecentEntry, 0, limit)
	for _, e := range entries[:limit] {
		secs := e.DurationSeconds(now)
		out = append(out, RecentEntry{
			Entry:           e,
			ProjectName:     domain.ProjectName(projects, e.ProjectID),
			DurationSeconds: secs,
			Duration:        domain.FormatHMS(secs),
		})
	}
	return out
}
