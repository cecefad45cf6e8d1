package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"pastebox/internal/log"
	"pastebox/internal/model"
)

const itemColumns = `name, filename, type, size, sha256, complete, locked, uploaded_at, viewed_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeta(row rowScanner) (model.ItemMeta, error) {
	var m model.ItemMeta
	var complete, locked int
	if err := row.Scan(&m.Name, &m.Filename, &m.Type, &m.Size, &m.SHA256, &complete, &locked, &m.UploadedAt, &m.ViewedAt, &m.ExpiresAt); err != nil {
		return model.ItemMeta{}, err
	}
	m.Complete = complete != 0
	m.Locked = locked != 0
	return m, nil
}

// Meta returns the metadata of name without opening its content.
func (s *Store) Meta(ctx context.Context, name string) (model.ItemMeta, error) {
	if !ValidName(name) {
		return model.ItemMeta{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE name = ?`, name)
	m, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ItemMeta{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m, err
}

// Item is an open item. It holds the content file open until Close.
type Item struct {
	s    *Store
	meta model.ItemMeta
	f    *os.File

	mu     sync.Mutex
	closed bool
}

// OpenItem looks up name and opens its content. Expired items are reported as
// not found and removed. The caller must Close the returned item.
func (s *Store) OpenItem(ctx context.Context, name string) (*Item, error) {
	meta, err := s.Meta(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta.Expired(time.Now()) {
		if err := s.Delete(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
			log.WarningLog.Printf("could not remove expired item %s: %v", name, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := os.Open(s.dataPath(meta.Name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return &Item{s: s, meta: meta, f: f}, nil
}

func (it *Item) Name() string { return it.meta.Name }

func (it *Item) Meta() model.ItemMeta {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.meta
}

// ReadAll returns the whole content and records the item as viewed now.
func (it *Item) ReadAll(ctx context.Context) ([]byte, error) {
	r, err := it.Content(ctx)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Content rewinds the content for streaming and records the item as viewed now.
// The reader is valid until Close.
func (it *Item) Content(ctx context.Context) (io.ReadSeeker, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return nil, os.ErrClosed
	}
	if _, err := it.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	if err := it.s.markViewed(ctx, it.meta.Name, now); err != nil {
		return nil, err
	}
	it.meta.ViewedAt = now
	return it.f, nil
}

func (it *Item) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return nil
	}
	it.closed = true
	return it.f.Close()
}

// markViewed is a single UPDATE; concurrent viewers race and the last one wins.
func (s *Store) markViewed(ctx context.Context, name string, at int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE items SET viewed_at = ? WHERE name = ?`, at, name)
	return err
}

// FileInfos resolves names to listing records. Unknown and expired names are
// left out; the result is in no particular order.
func (s *Store) FileInfos(ctx context.Context, names []string) ([]model.FileInfo, error) {
	seen := map[string]bool{}
	valid := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !ValidName(n) || seen[n] {
			continue
		}
		seen[n] = true
		valid = append(valid, n)
	}

	now := time.Now()
	out := make([]model.FileInfo, 0, len(valid))
	const chunk = 200
	for start := 0; start < len(valid); start += chunk {
		end := min(start+chunk, len(valid))
		part := valid[start:end]
		args := make([]any, len(part))
		for i, n := range part {
			args[i] = n
		}
		q := `SELECT ` + itemColumns + ` FROM items WHERE name IN (?` + strings.Repeat(",?", len(part)-1) + `)`
		metas, err := s.queryMetas(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for _, m := range metas {
			if m.Expired(now) {
				continue
			}
			out = append(out, m.FileInfo())
		}
	}
	return out, nil
}

// List returns every live item ordered by filename, then name.
func (s *Store) List(ctx context.Context) ([]model.FileInfo, error) {
	metas, err := s.queryMetas(ctx, `SELECT `+itemColumns+` FROM items`)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]model.FileInfo, 0, len(metas))
	for _, m := range metas {
		if m.Expired(now) {
			continue
		}
		out = append(out, m.FileInfo())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) queryMetas(ctx context.Context, q string, args ...any) ([]model.ItemMeta, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ItemMeta
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SetLocked(ctx context.Context, name string, locked bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET locked = ? WHERE name = ?`, boolToInt(locked), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Delete removes the item's metadata and content.
func (s *Store) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if err := os.Remove(s.dataPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Purge deletes every item expired at now and returns their names.
func (s *Store) Purge(ctx context.Context, now time.Time) ([]string, error) {
	metas, err := s.queryMetas(ctx, `SELECT `+itemColumns+` FROM items WHERE expires_at >= 0 AND expires_at <= ?`, now.Unix())
	if err != nil {
		return nil, err
	}
	purged := make([]string, 0, len(metas))
	for _, m := range metas {
		if err := s.Delete(ctx, m.Name); err != nil && !errors.Is(err, ErrNotFound) {
			return purged, err
		}
		purged = append(purged, m.Name)
	}
	sort.Strings(purged)
	return purged, nil
}
