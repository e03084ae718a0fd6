package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/timecard/internal/credential"
	"github.com/felixgeelhaar/timecard/internal/domain"
)

// Config controls the cookie mirror and the time source.
type Config struct {
	CookieName string
	CookieTTL  time.Duration
	// Secure marks the cookie as HTTPS only; tied to production mode.
	Secure bool
	Now    func() time.Time
	Logger *slog.Logger
}

// Service is the process-wide authentication state. It is the single writer
// of the persisted credential and its cookie mirror; everything else reads a
// Snapshot or subscribes to transitions.
type Service struct {
	creds   CredentialStore
	cookies CookieMirror
	nav     Navigator

	cookieName string
	cookieTTL  time.Duration
	secure     bool
	now        func() time.Time
	logger     *slog.Logger

	// op serializes restore/login/logout/expire so persistence and the
	// in-memory flip are observed in order.
	op    sync.Mutex
	mu    sync.RWMutex
	state domain.Session

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewService creates a session service. nav may be nil.
func NewService(creds CredentialStore, cookies CookieMirror, nav Navigator, cfg Config) *Service {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = DefaultCookieTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if nav == nil {
		nav = NavigatorFunc(func(context.Context, string) {})
	}
	return &Service{
		creds:      creds,
		cookies:    cookies,
		nav:        nav,
		cookieName: cfg.CookieName,
		cookieTTL:  cfg.CookieTTL,
		secure:     cfg.Secure,
		now:        cfg.Now,
		logger:     cfg.Logger,
		subs:       make(map[int]func(Event)),
	}
}

// Restore rebuilds the session from the persisted credential. A credential
// that fails to decode or carries no identity is purged. Calling Restore
// again re-reads persisted state.
func (s *Service) Restore(ctx context.Context) error {
	s.op.Lock()
	raw, err := s.creds.LoadCredential()
	if err != nil {
		s.op.Unlock()
		return fmt.Errorf("load credential: %w", err)
	}

	if raw == "" {
		s.set(domain.Session{})
		s.op.Unlock()
		return nil
	}

	identity, err := credential.Decode(raw)
	if err != nil || identity == nil {
		s.logger.WarnContext(ctx, "discarding stored credential", "error", err)
		s.purge(ctx)
		s.set(domain.Session{})
		s.op.Unlock()
		return nil
	}

	snap := domain.Session{Authenticated: true, Credential: raw, Identity: identity}
	s.set(snap)
	s.op.Unlock()

	s.logger.DebugContext(ctx, "session restored", "user_id", identity.ID)
	s.notify(EventRestored, snap)
	return nil
}

// Login validates and stores a credential. Nothing is mutated when the
// credential cannot be decoded or yields no identity. The durable copy and
// the cookie mirror are written before the session reports authenticated.
func (s *Service) Login(ctx context.Context, raw string) error {
	identity, err := credential.Decode(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	if identity == nil {
		return domain.ErrInvalidCredential
	}

	s.op.Lock()
	prev, err := s.creds.LoadCredential()
	if err != nil {
		s.op.Unlock()
		return fmt.Errorf("load credential: %w", err)
	}
	if err := s.creds.SaveCredential(raw); err != nil {
		s.op.Unlock()
		return fmt.Errorf("save credential: %w", err)
	}
	if err := s.cookies.SetCookie(s.cookie(raw)); err != nil {
		dropped := s.rollbackLocked(ctx, prev)
		s.op.Unlock()
		if dropped {
			s.notify(EventLoggedOut, domain.Session{})
		}
		return fmt.Errorf("mirror credential cookie: %w", err)
	}

	snap := domain.Session{Authenticated: true, Credential: raw, Identity: identity}
	s.set(snap)
	s.op.Unlock()

	s.logger.InfoContext(ctx, "logged in", "user_id", identity.ID)
	s.notify(EventLoggedIn, snap)
	return nil
}

// Logout clears the persisted credential and cookie, resets the session
// and navigates to the login surface. It never fails.
func (s *Service) Logout(ctx context.Context) {
	s.op.Lock()
	s.purge(ctx)
	s.set(domain.Session{})
	s.op.Unlock()

	s.logger.InfoContext(ctx, "logged out")
	s.notify(EventLoggedOut, domain.Session{})
	s.nav.ToLogin(ctx, "logged out")
}

// Expire ends the session after the server rejected the credential that was
// attached to a request (used). A rejection of an older credential than the
// current one is ignored, and concurrent rejections of the same credential
// navigate only once.
func (s *Service) Expire(ctx context.Context, used string) {
	s.op.Lock()
	current := s.Credential()
	if used != "" && current != used {
		s.op.Unlock()
		return
	}
	s.purge(ctx)
	s.set(domain.Session{})
	s.op.Unlock()

	s.logger.WarnContext(ctx, "session expired by server")
	s.notify(EventExpired, domain.Session{})
	s.nav.ToLogin(ctx, domain.ErrSessionExpired.Error())
}

// Snapshot returns a copy of the current session.
func (s *Service) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	if snap.Identity != nil {
		id := *snap.Identity
		snap.Identity = &id
	}
	return snap
}

// Credential returns the current credential, or "" when unauthenticated.
func (s *Service) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Credential
}

// IsAuthenticated reports whether a session is active.
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

// Subscribe registers fn for every transition and returns a function that
// removes it.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// rollbackLocked puts back the durable credential that was stored before a
// login whose cookie write failed, so storage, cookie and the in-memory
// session keep describing the previous session. If that is impossible all
// copies are dropped and it reports whether an active session ended.
// Callers hold op.
func (s *Service) rollbackLocked(ctx context.Context, prev string) bool {
	var err error
	if prev == "" {
		err = s.creds.ClearCredential()
	} else {
		err = s.creds.SaveCredential(prev)
	}
	if err == nil {
		return false
	}

	s.logger.ErrorContext(ctx, "rollback credential", "error", err)
	wasAuthenticated := s.IsAuthenticated()
	s.purge(ctx)
	s.set(domain.Session{})
	return wasAuthenticated
}

func (s *Service) set(snap domain.Session) {
	s.mu.Lock()
	s.state = snap
	s.mu.Unlock()
}

// purge clears both persisted copies. Errors are logged; clearing state
// that does not exist is not an error.
func (s *Service) purge(ctx context.Context) {
	if err := s.creds.ClearCredential(); err != nil {
		s.logger.ErrorContext(ctx, "clear credential", "error", err)
	}
	if err := s.cookies.ClearCookie(s.cookieName); err != nil && !errors.Is(err, ErrCookieNotFound) {
		s.logger.ErrorContext(ctx, "clear credential cookie", "error", err)
	}
}

func (s *Service) cookie(raw string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    raw,
		Path:     "/",
		Expires:  s.now().Add(s.cookieTTL),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Service) notify(kind EventKind, snap domain.Session) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	ev := Event{Kind: kind, Session: snap, At: s.now()}
	for _, fn := range fns {
		fn(ev)
	}
}
