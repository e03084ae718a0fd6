package sqlite

import (
	"github.com/felixgeelhaar/timecard/internal/cache"
	"github.com/felixgeelhaar/timecard/internal/session"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ session.CredentialStore = (*CredentialStore)(nil)
	_ session.CookieMirror    = (*CredentialStore)(nil)
	_ cache.Store             = (*CacheStore)(nil)
)
