package session

import (
	"net/http"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// Defaults for the cookie mirror.
const (
	DefaultCookieName = "auth_token"
	DefaultCookieTTL  = 7 * 24 * time.Hour
)

// EventKind identifies a session transition.
type EventKind string

const (
	EventRestored  EventKind = "restored"
	EventLoggedIn  EventKind = "logged_in"
	EventLoggedOut EventKind = "logged_out"
	EventExpired   EventKind = "expired"
)

// Event is delivered to subscribers after every transition.
type Event struct {
	Kind    EventKind
	Session domain.Session
	At      time.Time
}

// Cookie is the persisted form of the mirrored credential cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"same_site"`
}

// NewCookie converts an http.Cookie into its persisted form.
func NewCookie(c *http.Cookie) Cookie {
	return Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Expires:  c.Expires.UTC(),
		Secure:   c.Secure,
		SameSite: sameSiteName(c.SameSite),
	}
}

// HTTPCookie converts the persisted cookie back for use on a request.
func (c Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		SameSite: parseSameSite(c.SameSite),
	}
}

// Expired reports whether the cookie is past its expiry at now.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return ""
	}
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
