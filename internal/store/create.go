package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pastebox/internal/model"

	"github.com/alecthomas/chroma/v2/lexers"
)

const DefaultMaxBytes int64 = 50 * 1024 * 1024 // 50MB

// NewItem describes an item about to be stored.
type NewItem struct {
	Filename string
	// Type is the MIME type. When empty it is guessed from Filename.
	Type   string
	Locked bool
	// MaxLife is how long the item lives; 0 keeps it forever.
	MaxLife time.Duration
}

// ValidName reports whether name can address an item. Names are a single path
// element made of letters, digits, '.', '_' and '-', never starting with '.'.
func ValidName(name string) bool {
	if name == "" || len(name) > 128 || name[0] == '.' {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}

// DetectType picks the MIME type for a new item: the explicit type, the
// extension's registered image, audio or PDF type, the type of a syntax lexer
// matching the filename, any other registered extension type, then
// application/octet-stream. Parameters are dropped.
//
// Lexer types beat generic extension types so that source files get a type the
// text renderer can highlight (".go" is "text/x-gosrc", ".ts" is TypeScript
// rather than video/mp2t). Media extensions beat lexers so that ".svg" stays an
// image instead of XML source.
func DetectType(filename, explicit string) string {
	if t := normalizeType(explicit); t != "" {
		return t
	}
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return model.DefaultType
	}
	var extType string
	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		extType = normalizeType(mime.TypeByExtension(ext))
	}
	if isMediaType(extType) {
		return extType
	}
	if l := lexers.Match(base); l != nil {
		for _, mt := range l.Config().MimeTypes {
			if t := normalizeType(mt); t != "" {
				return t
			}
		}
	}
	if extType != "" {
		return extType
	}
	return model.DefaultType
}

func isMediaType(t string) bool {
	return strings.HasPrefix(t, "image/") || strings.HasPrefix(t, "audio/") || t == "application/pdf"
}

// Reserve registers an incomplete, empty item and returns its name. Content is
// supplied later with Write.
func (s *Store) Reserve(ctx context.Context, n NewItem) (string, error) {
	filename := strings.TrimSpace(n.Filename)
	if filename != "" {
		filename = filepath.Base(filepath.FromSlash(filename))
	}
	typ := DetectType(filename, n.Type)
	now := time.Now().UTC()
	expires := int64(-1)
	if n.MaxLife > 0 {
		expires = now.Add(n.MaxLife).Unix()
	}

	for attempt := 0; attempt < 8; attempt++ {
		name, err := newName()
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(s.dataPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		_ = f.Close()

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO items(name, filename, type, size, sha256, complete, locked, uploaded_at, viewed_at, expires_at)
			 VALUES(?, ?, ?, 0, '', 0, ?, ?, 0, ?)`,
			name, filename, typ, boolToInt(n.Locked), now.Unix(), expires)
		if err != nil {
			_ = os.Remove(s.dataPath(name))
			return "", err
		}
		return name, nil
	}
	return "", errors.New("store: could not allocate an item name")
}

// Write stores the content of a reserved item and marks it complete.
// Content larger than maxBytes (DefaultMaxBytes when <= 0) is rejected and the
// item stays incomplete.
func (s *Store) Write(ctx context.Context, name string, r io.Reader, maxBytes int64) (model.ItemMeta, error) {
	meta, err := s.Meta(ctx, name)
	if err != nil {
		return model.ItemMeta{}, err
	}
	if meta.Complete {
		return model.ItemMeta{}, fmt.Errorf("%w: %s", ErrComplete, name)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	tmp, err := os.CreateTemp(s.dataDir(), ".upload-*")
	if err != nil {
		return model.ItemMeta{}, err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	h := sha256.New()
	w := io.MultiWriter(tmp, h)
	n, err := io.Copy(w, io.LimitReader(r, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return model.ItemMeta{}, err
	}
	if n > maxBytes {
		return model.ItemMeta{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if err := os.Rename(tmpPath, s.dataPath(name)); err != nil {
		return model.ItemMeta{}, err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if _, err := s.db.ExecContext(ctx, `UPDATE items SET size = ?, sha256 = ?, complete = 1 WHERE name = ?`, n, sum, name); err != nil {
		return model.ItemMeta{}, err
	}
	meta.Size = n
	meta.SHA256 = sum
	meta.Complete = true
	return meta, nil
}

// Create is Reserve followed by Write.
func (s *Store) Create(ctx context.Context, n NewItem, r io.Reader, maxBytes int64) (model.ItemMeta, error) {
	name, err := s.Reserve(ctx, n)
	if err != nil {
		return model.ItemMeta{}, err
	}
	meta, err := s.Write(ctx, name, r, maxBytes)
	if err != nil {
		_ = s.Delete(ctx, name)
		return model.ItemMeta{}, err
	}
	return meta, nil
}

// CreateList stores a list item referencing names, one per line.
func (s *Store) CreateList(ctx context.Context, filename string, names []string, locked bool) (model.ItemMeta, error) {
	var b strings.Builder
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		b.WriteString(n)
		b.WriteByte('\n')
	}
	if strings.TrimSpace(filename) == "" {
		filename = "list"
	}
	return s.Create(ctx, NewItem{Filename: filename, Type: model.ListType, Locked: locked}, strings.NewReader(b.String()), 0)
}

// ParseMaxLife parses a lifetime such as "1h" or "168h". Empty and "forever"
// mean no expiry.
func ParseMaxLife(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "forever" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid maxlife %q", v)
	}
	return d, nil
}
