// Package events fans session and timer transitions out to a RabbitMQ
// topic exchange so other devices and tools can follow the clock.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/timecard/internal/clock"
	"github.com/felixgeelhaar/timecard/internal/session"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "timecard.events"

// ErrNotConnected is returned when publishing after Close or before a
// dropped broker connection was re-established.
var ErrNotConnected = errors.New("event broker not connected")

// Envelope is the wire form of an event. It never carries the credential.
type Envelope struct {
	ID     uuid.UUID     `json:"id"`
	Type   string        `json:"type"`
	UserID string        `json:"user_id,omitempty"`
	Email  string        `json:"email,omitempty"`
	Timer  *TimerPayload `json:"timer,omitempty"`
	At     time.Time     `json:"at"`
}

// RoutingKey is the topic the envelope is published under.
func (e Envelope) RoutingKey() string {
	return e.Type
}

// TimerPayload describes the timer in a timer event.
type TimerPayload struct {
	TimerID        int64     `json:"timer_id,omitempty"`
	ProjectID      int64     `json:"project_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// Publisher sends envelopes somewhere.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

// FromSession converts a session transition.
func FromSession(ev session.Event) Envelope {
	env := Envelope{
		ID:   uuid.New(),
		Type: "session." + string(ev.Kind),
		At:   ev.At.UTC(),
	}
	if id := ev.Session.Identity; id != nil {
		env.UserID = id.ID
		env.Email = id.Email
	}
	return env
}

// FromClock converts a timer transition. Ticks are not published and
// report ok=false.
func FromClock(ev clock.Event, at time.Time) (Envelope, bool) {
	if ev.Kind == clock.EventTick {
		return Envelope{}, false
	}
	env := Envelope{
		ID:   uuid.New(),
		Type: "timer." + string(ev.Kind),
		At:   at.UTC(),
	}
	st := ev.Status
	env.Timer = &TimerPayload{
		TimerID:        st.TimerID,
		ProjectID:      st.ProjectID,
		StartedAt:      st.StartedAt,
		ElapsedSeconds: st.ElapsedSeconds,
	}
	return env, true
}
