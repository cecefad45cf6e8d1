package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	sqliteFileName = "index.sqlite"
	dataDirName    = "data"
)

var (
	ErrNotFound = errors.New("item not found")
	ErrTooLarge = errors.New("item too large")
	ErrComplete = errors.New("item already complete")
)

// Store keeps item content under <Dir>/data and metadata in <Dir>/index.sqlite.
//
// A Store is safe for concurrent use.
type Store struct {
	Dir string

	db *sql.DB
}

// Open opens (and creates if needed) the store rooted at dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store: dir is empty")
	}
	s := &Store{Dir: filepath.Clean(dir)}
	if err := os.MkdirAll(s.dataDir(), 0o755); err != nil {
		return nil, err
	}

	// modernc.org/sqlite driver name is "sqlite". Pragmas go through the DSN so
	// every pooled connection gets them.
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+s.sqlitePath()+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s *Store) dataDir() string {
	return filepath.Join(s.Dir, dataDirName)
}

func (s *Store) dataPath(name string) string {
	return filepath.Join(s.dataDir(), name)
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			name TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			type TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			sha256 TEXT NOT NULL DEFAULT '',
			complete INTEGER NOT NULL DEFAULT 0,
			locked INTEGER NOT NULL DEFAULT 0,
			uploaded_at INTEGER NOT NULL,
			viewed_at INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL DEFAULT -1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_filename ON items(filename);`,
		`CREATE INDEX IF NOT EXISTS idx_items_expires ON items(expires_at);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
