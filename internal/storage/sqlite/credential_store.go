package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/timecard/internal/session"
)

const credentialKey = "auth_token"

// CredentialStore implements credential and cookie persistence backed by
// SQLite.
type CredentialStore struct {
	db  *DB
	now func() time.Time
}

// NewCredentialStore creates a new SQLite-backed credential store.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db, now: time.Now}
}

// LoadCredential returns the stored credential, or "" when none is stored.
func (s *CredentialStore) LoadCredential() (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", credentialKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query credential: %w", err)
	}
	return value, nil
}

// SaveCredential persists the credential (insert or update).
func (s *CredentialStore) SaveCredential(credential string) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (key, value, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, saved_at=excluded.saved_at`,
		credentialKey, credential, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// ClearCredential removes the stored credential.
func (s *CredentialStore) ClearCredential() error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", credentialKey); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// SetCookie persists the mirrored cookie.
func (s *CredentialStore) SetCookie(cookie *http.Cookie) error {
	c := session.NewCookie(cookie)
	_, err := s.db.Exec(`
		INSERT INTO cookies (name, value, path, expires_at, secure, same_site)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value=excluded.value, path=excluded.path, expires_at=excluded.expires_at,
			secure=excluded.secure, same_site=excluded.same_site`,
		c.Name, c.Value, c.Path, nullTime(c.Expires), c.Secure, c.SameSite,
	)
	if err != nil {
		return fmt.Errorf("upsert cookie: %w", err)
	}
	return nil
}

// ClearCookie removes the mirrored cookie.
func (s *CredentialStore) ClearCookie(name string) error {
	if _, err := s.db.Exec("DELETE FROM cookies WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete cookie: %w", err)
	}
	return nil
}

// Cookie returns the mirrored cookie. Expired cookies are reported as
// session.ErrCookieNotFound.
func (s *CredentialStore) Cookie(name string) (*http.Cookie, error) {
	var (
		c       session.Cookie
		expires sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT name, value, path, expires_at, secure, same_site
		FROM cookies WHERE name = ?`, name,
	).Scan(&c.Name, &c.Value, &c.Path, &expires, &c.Secure, &c.SameSite)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrCookieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cookie: %w", err)
	}
	if expires.Valid {
		c.Expires = expires.Time.UTC()
	}
	if c.Expired(s.now()) {
		return nil, session.ErrCookieNotFound
	}
	return c.HTTPCookie(), nil
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
