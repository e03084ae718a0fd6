package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/timecard/internal/storage/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection to a SQLite database with migration support.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for migration progress.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// Open creates a new SQLite connection with WAL mode and foreign keys
// enabled. The state file holds a bearer credential, so it is created
// owner-only.
func Open(path string, opts ...Option) (*DB, error) {
	if err := ensureFile(path, 0600); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// one writer; also keeps WAL pragmas on a single connection
	db.SetMaxOpenConns(1)

	d := &DB{DB: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ensureFile creates the database file with perm unless it exists.
func ensureFile(path string, perm os.FileMode) error {
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, perm)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	return f.Close()
}

type migration struct {
	version int
	name    string
}

// Migrate brings the schema up to date. Each migration runs in its own
// transaction together with its schema_migrations row.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := db.Version()
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	pending, err := db.pending(current)
	if err != nil {
		return err
	}

	for _, m := range pending {
		data, err := fs.ReadFile(migrations.FS, m.name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.name, err)
		}
		err = db.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(data)); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("record migration %s: %w", m.name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		db.logger.Debug("applied migration", "name", m.name, "version", m.version)
	}
	return nil
}

// pending lists the embedded migrations newer than current, oldest first.
func (db *DB) pending(current int) ([]migration, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(e.Name())
		if err != nil {
			db.logger.Warn("skipping non-migration file", "name", e.Name(), "error", err)
			continue
		}
		if version > current {
			out = append(out, migration{version: version, name: e.Name()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// inTx runs fn in a transaction, rolling back when it fails.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("rollback", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Version returns the current schema version, 0 before the first
// migration.
func (db *DB) Version() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// parseVersion reads the numeric prefix of a name like "002_cache.sql".
func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename: %s", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("invalid migration version in %s", name)
	}
	return version, nil
}
