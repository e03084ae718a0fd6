package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/timecard/internal/cache"
	"github.com/felixgeelhaar/timecard/internal/clock"
	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/overview"
)

// Clock is the part of the timer engine the tools drive.
type Clock interface {
	Status() clock.Status
	Load(ctx context.Context) error
	Start(ctx context.Context, projectID int64) (clock.Status, error)
	Stop(ctx context.Context) (*domain.TimeEntry, error)
}

// Lists serves the cached read-only lists.
type Lists interface {
	Projects(ctx context.Context) (cache.Snapshot[domain.Project], error)
	Entries(ctx context.Context) (cache.Snapshot[domain.TimeEntry], error)
}

// Reports builds period overviews.
type Reports interface {
	Report(ctx context.Context, period domain.Period) (*overview.Report, error)
}

// Sessions exposes the authentication state.
type Sessions interface {
	Snapshot() domain.Session
}

// Server wraps the MCP server with timecard functionality
type Server struct {
	mcpServer *server.Server
	clock     Clock
	lists     Lists
	reports   Reports
	sessions  Sessions
	now       func() time.Time
}

// Config contains configuration for the MCP server
type Config struct {
	Clock    Clock
	Lists    Lists
	Reports  Reports
	Sessions Sessions
	Version  string
}

// NewServer creates a new MCP server for timecard
func NewServer(cfg Config) *Server {
	s := &Server{
		clock:    cfg.Clock,
		lists:    cfg.Lists,
		reports:  cfg.Reports,
		sessions: cfg.Sessions,
		now:      time.Now,
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "timecard",
		Version: version,
	}, server.WithInstructions(`
Timecard tracks working hours against projects. One timer runs at a time.

Available tools:
- timecard_status: Show the running timer and elapsed time
- timecard_start: Start the timer for a project ID
- timecard_stop: Stop the running timer
- timecard_projects: List projects
- timecard_entries: List the most recent time entries
- timecard_overview: Hours, revenue and mileage for a week, month or year

The server is the source of truth; start and stop fail rather than guess
when it cannot be reached.
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("timecard_status").
		Description("Get the running timer and elapsed time.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("timecard_start").
		Description("Start the timer for a project.").
		Handler(s.handleStart)

	s.mcpServer.Tool("timecard_stop").
		Description("Stop the running timer.").
		Handler(s.handleStop)

	s.mcpServer.Tool("timecard_projects").
		Description("List projects.").
		Handler(s.handleProjects)

	s.mcpServer.Tool("timecard_entries").
		Description("List the most recent time entries with durations.").
		Handler(s.handleEntries)

	s.mcpServer.Tool("timecard_overview").
		Description("Get hour and mileage totals for a period.").
		Handler(s.handleOverview)
}

// Input/Output types for tools

type StatusInput struct {
	// Refresh reloads the timer from the server first.
	Refresh bool `json:"refresh,omitempty" jsonschema:"description=Reload the active timer from the server first"`
}

type TimerOutput struct {
	State            string `json:"state"`
	TimerID          int64  `json:"timer_id,omitempty"`
	ProjectID        int64  `json:"project_id,omitempty"`
	StartedAt        string `json:"started_at,omitempty"`
	Elapsed          string `json:"elapsed"`
	GatewayAvailable bool   `json:"gateway_available"`
	User             string `json:"user,omitempty"`
}

type StartInput struct {
	ProjectID int64 `json:"project_id" jsonschema:"description=Project ID from timecard_projects"`
}

type StopInput struct{}

type StopOutput struct {
	EntryID   int64  `json:"entry_id"`
	ProjectID int64  `json:"project_id"`
	Duration  string `json:"duration"`
	Message   string `json:"message"`
}

type ListInput struct {
	// ActiveOnly hides archived projects.
	ActiveOnly bool `json:"active_only,omitempty" jsonschema:"description=Only list active projects"`
}

type ProjectsOutput struct {
	Projects []domain.Project `json:"projects"`
	Stale    bool             `json:"stale"`
}

type EntriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Number of entries (default 5)"`
}

type EntryOutput struct {
	ID        int64  `json:"id"`
	Project   string `json:"project"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration"`
	Open      bool   `json:"open"`
}

type EntriesOutput struct {
	Entries []EntryOutput `json:"entries"`
	Stale   bool          `json:"stale"`
}

type OverviewInput struct {
	Period string `json:"period,omitempty" jsonschema:"description=Period to summarize,enum=week,enum=month,enum=year"`
}

// Tool handlers

func (s *Server) handleStatus(ctx context.Context, input StatusInput) (TimerOutput, error) {
	if input.Refresh {
		if err := s.clock.Load(ctx); err != nil {
			return TimerOutput{}, fmt.Errorf("failed to load timer: %w", err)
		}
	}
	return s.timerOutput(s.clock.Status()), nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (TimerOutput, error) {
	st, err := s.clock.Start(ctx, input.ProjectID)
	if err != nil {
		return TimerOutput{}, fmt.Errorf("failed to start timer: %w", err)
	}
	return s.timerOutput(st), nil
}

func (s *Server) handleStop(ctx context.Context, _ StopInput) (StopOutput, error) {
	entry, err := s.clock.Stop(ctx)
	if err != nil {
		return StopOutput{}, fmt.Errorf("failed to stop timer: %w", err)
	}
	out := StopOutput{Message: "Timer stopped"}
	if entry != nil {
		out.EntryID = entry.ID
		out.ProjectID = entry.ProjectID
		out.Duration = domain.FormatHMS(entry.DurationSeconds(s.now()))
	}
	return out, nil
}

func (s *Server) handleProjects(ctx context.Context, input ListInput) (ProjectsOutput, error) {
	snap, err := s.lists.Projects(ctx)
	if err != nil {
		return ProjectsOutput{}, fmt.Errorf("failed to list projects: %w", err)
	}
	out := ProjectsOutput{Projects: []domain.Project{}, Stale: snap.Stale}
	for _, p := range snap.Items {
		if input.ActiveOnly && !p.IsActive {
			continue
		}
		out.Projects = append(out.Projects, p)
	}
	return out, nil
}

func (s *Server) handleEntries(ctx context.Context, input EntriesInput) (EntriesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = overview.RecentLimit
	}

	entries, err := s.lists.Entries(ctx)
	if err != nil {
		return EntriesOutput{}, fmt.Errorf("failed to list entries: %w", err)
	}
	// names are cosmetic; an unreachable project list is not fatal
	projects, err := s.lists.Projects(ctx)
	if err != nil && !errors.Is(err, cache.ErrMiss) && !errors.Is(err, domain.ErrNetworkUnavailable) {
		return EntriesOutput{}, fmt.Errorf("failed to list projects: %w", err)
	}

	out := EntriesOutput{Entries: []EntryOutput{}, Stale: entries.Stale}
	for _, r := range overview.Recent(entries.Items, projects.Items, s.now(), limit) {
		out.Entries = append(out.Entries, EntryOutput{
			ID:        r.Entry.ID,
			Project:   r.ProjectName,
			StartedAt: r.Entry.StartedAt.Format(time.RFC3339),
			Duration:  r.Duration,
			Open:      !r.Entry.Closed(),
		})
	}
	return out, nil
}

func (s *Server) handleOverview(ctx context.Context, input OverviewInput) (overview.Report, error) {
	period := domain.Period(input.Period)
	if period == "" {
		period = domain.PeriodWeek
	}
	report, err := s.reports.Report(ctx, period)
	if err != nil {
		return overview.Report{}, fmt.Errorf("failed to build overview: %w", err)
	}
	return *report, nil
}

func (s *Server) timerOutput(st clock.Status) TimerOutput {
	out := TimerOutput{
		State:            string(st.State),
		TimerID:          st.TimerID,
		ProjectID:        st.ProjectID,
		Elapsed:          st.Display,
		GatewayAvailable: st.GatewayAvailable,
	}
	if st.Running() {
		out.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	if s.sessions != nil {
		out.User = s.sessions.Snapshot().Identity.DisplayName()
	}
	return out
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
