package store

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

var nameEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newName returns 8 chars of lowercase base32 (~40 bits). Collisions are
// handled by the caller creating the data file with O_EXCL.
func newName() (string, error) {
	var b [5]byte // 40 bits -> 8 base32 chars
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return strings.ToLower(nameEncoding.EncodeToString(b[:])), nil
}
