// Package app wires the session, gateway, timer engine, caches and event
// publishing into one process-wide graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/felixgeelhaar/timecard/internal/api"
	"github.com/felixgeelhaar/timecard/internal/cache"
	"github.com/felixgeelhaar/timecard/internal/clock"
	"github.com/felixgeelhaar/timecard/internal/config"
	"github.com/felixgeelhaar/timecard/internal/events"
	"github.com/felixgeelhaar/timecard/internal/gateway"
	"github.com/felixgeelhaar/timecard/internal/guard"
	"github.com/felixgeelhaar/timecard/internal/overview"
	"github.com/felixgeelhaar/timecard/internal/session"
	"github.com/felixgeelhaar/timecard/internal/storage/sqlite"
)

// CookieReader reads back the mirrored credential cookie. Both session
// stores implement it.
type CookieReader interface {
	Cookie(name string) (*http.Cookie, error)
}

// stateStore is what the chosen backend provides to the session.
type stateStore interface {
	session.CredentialStore
	session.CookieMirror
	CookieReader
}

// Options holds what New needs beyond the configuration.
type Options struct {
	Config *config.Config
	// Dir is the data directory, usually ~/.timecard.
	Dir string
	// Navigator is told when the session ends. May be nil.
	Navigator session.Navigator
	// HTTPClient overrides the gateway transport, for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// App holds the services of one process.
type App struct {
	Config   *config.Config
	Session  *session.Service
	Gateway  *gateway.Client
	API      *api.Client
	Clock    *clock.Engine
	Cache    *cache.Service
	Overview *overview.Service
	Guard    *guard.Guard

	cookies CookieReader
	db      *sqlite.DB
	conn    *events.Connection
	bridge  *events.Bridge
	unsub   func()
	logger  *slog.Logger
}

// New builds the graph and restores the persisted session. It does not
// contact the API.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	store, cacheStore, err := a.openStorage(cfg.Storage.Backend, opts.Dir)
	if err != nil {
		return nil, err
	}
	a.cookies = store

	a.Session = session.NewService(store, store, opts.Navigator, session.Config{
		CookieName: cfg.Session.CookieName,
		CookieTTL:  cfg.CookieTTL(),
		Secure:     cfg.Session.Production,
		Logger:     logger,
	})

	gwCfg := gateway.DefaultConfig()
	gwCfg.BaseURL = cfg.API.BaseURL
	gwCfg.Timeout = cfg.Timeout()
	gwCfg.EnableCircuitBreaker = cfg.Resilience.CircuitBreaker
	gwCfg.EnableRetry = cfg.Resilience.Retry
	if cfg.Resilience.MaxAttempts > 0 {
		gwCfg.MaxAttempts = cfg.Resilience.MaxAttempts
	}
	gwCfg.HTTPClient = opts.HTTPClient
	gwCfg.Logger = logger
	a.Gateway = gateway.NewClient(a.Session, gwCfg)

	a.API = api.NewClient(a.Gateway)
	a.Clock = clock.NewEngine(a.API, clock.WithLogger(logger))
	a.Cache = cache.NewService(a.API, cacheStore, logger)
	a.Overview = overview.NewService(a.API)
	a.Guard = guard.New(guard.Config{CookieName: cfg.Session.CookieName, Logger: logger})

	// whatever ended the session, the timer projection and the cached lists
	// belonged to that user
	a.unsub = a.Session.Subscribe(func(ev session.Event) {
		if ev.Kind != session.EventLoggedOut && ev.Kind != session.EventExpired {
			return
		}
		a.Clock.Reset()
		if err := a.Cache.Clear(); err != nil {
			logger.Warn("clear cache", "error", err)
		}
	})

	if cfg.Events.AMQPURL != "" {
		conn, err := events.NewConnection(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			// publishing is optional; the clock works without a broker
			logger.Warn("event publishing disabled", "error", err)
		} else {
			a.conn = conn
			a.bridge = events.NewBridge(events.NewAMQPPublisher(conn), events.BridgeConfig{Logger: logger})
			a.bridge.AttachSession(a.Session)
			a.bridge.AttachClock(a.Clock)
		}
	}

	if err := a.Session.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

func (a *App) openStorage(backend, dir string) (stateStore, cache.Store, error) {
	switch backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(filepath.Join(dir, "state", "timecard.db"), sqlite.WithLogger(a.logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open state db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate state db: %w", err)
		}
		a.db = db
		return sqlite.NewCredentialStore(db), sqlite.NewCacheStore(db), nil
	default:
		store, err := session.NewStore(filepath.Join(dir, "state"))
		if err != nil {
			return nil, nil, fmt.Errorf("create session store: %w", err)
		}
		cacheStore, err := cache.NewFileStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("create cache store: %w", err)
		}
		return store, cacheStore, nil
	}
}

// HasCookie reports whether an unexpired credential cookie is mirrored.
func (a *App) HasCookie() bool {
	c, err := a.cookies.Cookie(a.Config.Session.CookieName)
	return err == nil && c.Value != ""
}

// Authorize runs the route guard for a screen path using the cookie
// mirror, as the page gate would before rendering.
func (a *App) Authorize(path string) guard.Decision {
	return a.Guard.Decide(path, a.HasCookie())
}

// Close stops the engine, flushes pending events and releases storage.
func (a *App) Close() error {
	var errs []error
	if a.unsub != nil {
		a.unsub()
	}
	if a.Clock != nil {
		errs = append(errs, a.Clock.Close())
	}
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
