// Package guard decides, before a page or command renders, whether the
// caller may see it. It only checks that the credential cookie is present;
// the server decides validity on the next API call.
package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Default routes.
const (
	LoginPath    = "/login"
	RegisterPath = "/register"
	HomePath     = "/"
)

// Action is the outcome of a guard decision.
type Action int

const (
	// Pass lets the request through.
	Pass Action = iota
	// Redirect sends the caller to Decision.Location.
	Redirect
)

// Decision is the result of Decide.
type Decision struct {
	Action   Action
	Location string
}

// Config configures the guard.
type Config struct {
	CookieName string
	// PublicPaths are reachable without a cookie, matched by prefix.
	PublicPaths []string
	Logger      *slog.Logger
}

// DefaultConfig returns the guard configuration for the time tracker.
func DefaultConfig() Config {
	return Config{
		CookieName:  "auth_token",
		PublicPaths: []string{LoginPath, RegisterPath},
	}
}

// Guard applies the route rules.
type Guard struct {
	cookieName string
	public     []string
	logger     *slog.Logger
}

// New creates a guard.
func New(cfg Config) *Guard {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if len(cfg.PublicPaths) == 0 {
		cfg.PublicPaths = def.PublicPaths
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Guard{cookieName: cfg.CookieName, public: cfg.PublicPaths, logger: cfg.Logger}
}

// Decide applies the rules to a path:
//   - with a cookie, exactly a public path redirects home
//   - without a cookie, a protected path redirects to login with the
//     original path as the redirect parameter
//   - everything else passes
func (g *Guard) Decide(path string, hasCookie bool) Decision {
	if path == "" {
		path = HomePath
	}

	public := g.isPublic(path)
	switch {
	case hasCookie && g.isExactPublic(path):
		return Decision{Action: Redirect, Location: HomePath}
	case !hasCookie && !public:
		return Decision{Action: Redirect, Location: LoginPath + "?redirect=" + url.QueryEscape(path)}
	}
	return Decision{Action: Pass}
}

func (g *Guard) isPublic(path string) bool {
	for _, p := range g.public {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (g *Guard) isExactPublic(path string) bool {
	for _, p := range g.public {
		if path == p {
			return true
		}
	}
	return false
}

// Middleware enforces the rules on HTTP requests. Static assets and API
// routes bypass the guard.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Bypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		d := g.Decide(r.URL.Path, g.hasCookie(r))
		if d.Action == Redirect {
			g.logger.Debug("guard redirect",
				"path", r.URL.Path,
				"location", d.Location)
			http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hasCookie checks presence only. The value is never decoded here.
func (g *Guard) hasCookie(r *http.Request) bool {
	c, err := r.Cookie(g.cookieName)
	return err == nil && c.Value != ""
}

var bypassPrefixes = []string{"/api", "/_next/static", "/_next/image", "/favicon.ico"}

var bypassSuffixes = []string{".png", ".jpg", ".jpeg", ".svg"}

// Bypass reports whether a path is excluded from guarding.
func Bypass(path string) bool {
	for _, p := range bypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, s := range bypassSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
