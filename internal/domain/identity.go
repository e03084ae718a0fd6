package domain

import "time"

// Identity holds the display attributes decoded from a credential. It is
// never used for authorization; the server enforces that through rejections.
type Identity struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DisplayName returns the email when known, falling back to the subject.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Email != "" {
		return i.Email
	}
	return i.ID
}

// Session is the in-memory projection of the authentication state.
// Authenticated is true exactly when both Credential and Identity are set.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	Credential    string    `json:"-"`
	Identity      *Identity `json:"identity,omitempty"`
}

// Valid reports whether the session honors its all-or-nothing invariant.
func (s Session) Valid() bool {
	return s.Authenticated == (s.Credential != "" && s.Identity != nil)
}
