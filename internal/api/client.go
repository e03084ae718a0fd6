// Package api exposes the remote time-tracking API as typed calls over the
// gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/gateway"
)

// Endpoint paths relative to the API base.
const (
	pathLogin           = "/auth/login"
	pathRegister        = "/auth/register"
	pathProjects        = "/projects"
	pathActiveTimer     = "/tijdregistraties/lopend"
	pathStartTimer      = "/tijdregistraties/start"
	pathEntries         = "/tijdregistraties"
	pathOverviewHours   = "/overview/time-entries"
	pathOverviewMileage = "/overview/mileage"
)

// Transport is the subset of the gateway the API uses.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

var _ Transport = (*gateway.Client)(nil)

// Client wraps the remote API endpoints
type Client struct {
	t Transport
}

// NewClient creates a new API client
func NewClient(t Transport) *Client {
	return &Client{t: t}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	var resp tokenResponse
	if err := c.t.Post(ctx, pathLogin, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", domain.ErrInvalidCredential)
	}
	return resp.Token, nil
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"wachtwoord"`
	Confirmation string `json:"wachtwoordBevestiging"`
}

// Registration is the outcome of a sign up. Token is empty when the
// backend wants the user to log in separately.
type Registration struct {
	Token   string
	Message string
}

// Register creates an account. The confirmation must match the password.
func (c *Client) Register(ctx context.Context, email, password, confirmation string) (*Registration, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if password != confirmation {
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}

	var resp tokenResponse
	req := registerRequest{Email: email, Password: password, Confirmation: confirmation}
	if err := c.t.Post(ctx, pathRegister, req, &resp); err != nil {
		return nil, err
	}
	return &Registration{Token: resp.Token, Message: resp.Message}, nil
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.t.Get(ctx, pathProjects, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// NewProject is the input for CreateProject.
type NewProject struct {
	Name       string  `json:"name"`
	Client     string  `json:"client"`
	HourlyRate float64 `json:"hourlyRate"`
	IsActive   bool    `json:"isActive"`
}

// CreateProject adds an active project.
func (c *Client) CreateProject(ctx context.Context, in NewProject) (*domain.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Client = strings.TrimSpace(in.Client)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", domain.ErrInvalidInput)
	}
	if in.HourlyRate < 0 {
		return nil, fmt.Errorf("%w: hourly rate cannot be negative", domain.ErrInvalidInput)
	}
	in.IsActive = true

	var p domain.Project
	if err := c.t.Post(ctx, pathProjects, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ArchiveProject marks a project inactive. Projects are never deleted.
func (c *Client) ArchiveProject(ctx context.Context, id int64) error {
	body := map[string]bool{"isActive": false}
	return c.t.Put(ctx, fmt.Sprintf("%s/%d", pathProjects, id), body, nil)
}

// ActiveTimer returns the running timer of the current user. A 404 or a
// null body both mean no timer runs and yield domain.ErrNoActiveTimer.
func (c *Client) ActiveTimer(ctx context.Context) (*domain.ActiveTimer, error) {
	var timer *domain.ActiveTimer
	if err := c.t.Get(ctx, pathActiveTimer, &timer); err != nil {
		var rf *gateway.RequestFailedError
		if errors.As(err, &rf) && rf.Status == http.StatusNotFound {
			return nil, domain.ErrNoActiveTimer
		}
		return nil, err
	}
	if timer == nil || timer.ID == 0 {
		return nil, domain.ErrNoActiveTimer
	}
	timer.StartedAt = timer.StartedAt.UTC()
	return timer, nil
}

type startRequest struct {
	ProjectID int64     `json:"projectId"`
	StartedAt time.Time `json:"startTijd"`
}

// StartTimer opens a time registration for the project. The returned
// timer carries the identifier and start instant the server recorded.
func (c *Client) StartTimer(ctx context.Context, projectID int64, at time.Time) (*domain.ActiveTimer, error) {
	if projectID <= 0 {
		return nil, domain.ErrProjectRequired
	}

	var timer *domain.ActiveTimer
	req := startRequest{ProjectID: projectID, StartedAt: at.UTC()}
	if err := c.t.Post(ctx, pathStartTimer, req, &timer); err != nil {
		return nil, err
	}
	if timer == nil || timer.ID == 0 || timer.StartedAt.IsZero() {
		return nil, fmt.Errorf("%w: start response carried no timer", domain.ErrRequestFailed)
	}
	if timer.ProjectID == 0 {
		timer.ProjectID = projectID
	}
	timer.StartedAt = timer.StartedAt.UTC()
	return timer, nil
}

// StopTimer closes the timer. The closed entry is returned when the server
// sends it back, nil otherwise.
func (c *Client) StopTimer(ctx context.Context, timerID int64) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	if err := c.t.Put(ctx, fmt.Sprintf("%s/%d/stop", pathEntries, timerID), nil, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// TimeEntries lists the time registrations of the current user.
func (c *Client) TimeEntries(ctx context.Context) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	if err := c.t.Get(ctx, pathEntries, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// TimeOverview returns the hours summary for a period.
func (c *Client) TimeOverview(ctx context.Context, period domain.Period) ([]domain.TimeSummary, error) {
	if !period.IsValid() {
		return nil, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}
	var rows []domain.TimeSummary
	if err := c.t.Get(ctx, pathOverviewHours+"?period="+url.QueryEscape(string(period)), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MileageOverview returns the mileage summary for a period.
func (c *Client) MileageOverview(ctx context.Context, period domain.Period) ([]domain.MileageSummary, error) {
	if !period.IsValid() {
		return nil, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}
	var rows []domain.MileageSummary
	if err := c.t.Get(ctx, pathOverviewMileage+"?period="+url.QueryEscape(string(period)), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
