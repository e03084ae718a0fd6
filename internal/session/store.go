package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/timecard/internal/storage/local"
)

const (
	collectionAuth = "auth"
	credentialKey  = "auth_token"
	cookiePrefix   = "cookie_"
)

var (
	ErrCookieNotFound = errors.New("cookie not found")
)

type credentialRecord struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// Store handles credential and cookie persistence in JSON files.
type Store struct {
	store *local.Store
	now   func() time.Time
}

// NewStore creates a new session store. Files are written owner-only since
// they hold a bearer credential.
func NewStore(basePath string) (*Store, error) {
	store, err := local.NewStore(basePath, local.WithFileMode(0600))
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Store{store: store, now: time.Now}, nil
}

// LoadCredential returns the persisted credential
func (s *Store) LoadCredential() (string, error) {
	var rec credentialRecord
	if err := s.store.Load(collectionAuth, credentialKey, &rec); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return rec.Token, nil
}

// SaveCredential persists the credential
func (s *Store) SaveCredential(credential string) error {
	return s.store.Save(collectionAuth, credentialKey, credentialRecord{
		Token:   credential,
		SavedAt: s.now().UTC(),
	})
}

// ClearCredential removes the persisted credential
func (s *Store) ClearCredential() error {
	if err := s.store.Delete(collectionAuth, credentialKey); err != nil && !errors.Is(err, local.ErrNotFound) {
		return err
	}
	return nil
}

// SetCookie persists the mirrored cookie
func (s *Store) SetCookie(cookie *http.Cookie) error {
	return s.store.Save(collectionAuth, cookiePrefix+cookie.Name, NewCookie(cookie))
}

// ClearCookie removes the mirrored cookie
func (s *Store) ClearCookie(name string) error {
	if err := s.store.Delete(collectionAuth, cookiePrefix+name); err != nil && !errors.Is(err, local.ErrNotFound) {
		return err
	}
	return nil
}

// Cookie returns the mirrored cookie. Expired cookies are reported as
// missing, the way a browser would drop them.
func (s *Store) Cookie(name string) (*http.Cookie, error) {
	var c Cookie
	if err := s.store.Load(collectionAuth, cookiePrefix+name, &c); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, ErrCookieNotFound
		}
		return nil, err
	}
	if c.Expired(s.now()) {
		return nil, ErrCookieNotFound
	}
	return c.HTTPCookie(), nil
}
