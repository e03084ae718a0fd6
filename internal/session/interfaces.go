package session

import (
	"context"
	"net/http"
)

// CredentialStore persists the raw credential under a single durable key.
// Both the JSON file store and the SQLite store implement this.
type CredentialStore interface {
	// LoadCredential returns the persisted credential, or "" when none is stored.
	LoadCredential() (string, error)
	SaveCredential(credential string) error
	// ClearCredential is a no-op when nothing is stored.
	ClearCredential() error
}

// CookieMirror keeps a cookie copy of the credential for the route guard,
// which only checks presence before a page renders.
type CookieMirror interface {
	SetCookie(cookie *http.Cookie) error
	// ClearCookie is a no-op when the cookie does not exist.
	ClearCookie(name string) error
}

// Navigator moves the user to the login surface.
type Navigator interface {
	ToLogin(ctx context.Context, reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, reason string)

// ToLogin calls f.
func (f NavigatorFunc) ToLogin(ctx context.Context, reason string) {
	f(ctx, reason)
}

// Ensure Store (JSON) implements the persistence interfaces
var (
	_ CredentialStore = (*Store)(nil)
	_ CookieMirror    = (*Store)(nil)
)
