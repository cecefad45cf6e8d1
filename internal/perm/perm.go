package perm

import (
	"crypto/subtle"
	"sort"
	"strings"
)

type Permission string

const (
	Read   Permission = "read"
	Create Permission = "create"
	List   Permission = "list"
	Delete Permission = "delete"
	Admin  Permission = "admin"
)

var known = map[Permission]bool{
	Read:   true,
	Create: true,
	List:   true,
	Delete: true,
	Admin:  true,
}

// Set is an immutable set of granted permissions.
type Set struct {
	m map[Permission]bool
}

// Parse reads a comma separated permission list such as "read,create".
// Unknown and empty entries are ignored.
func Parse(s string) Set {
	out := Set{m: map[Permission]bool{}}
	for _, part := range strings.Split(s, ",") {
		p := Permission(strings.ToLower(strings.TrimSpace(part)))
		if known[p] {
			out.m[p] = true
		}
	}
	return out
}

func (s Set) Has(p Permission) bool {
	return s.m[p]
}

// Union returns the permissions granted by either set.
func (s Set) Union(o Set) Set {
	out := Set{m: make(map[Permission]bool, len(s.m)+len(o.m))}
	for p := range s.m {
		out.m[p] = true
	}
	for p := range o.m {
		out.m[p] = true
	}
	return out
}

func (s Set) String() string {
	ps := make([]string, 0, len(s.m))
	for p := range s.m {
		ps = append(ps, string(p))
	}
	sort.Strings(ps)
	return strings.Join(ps, ",")
}

// Grant maps a login secret to the permissions it unlocks.
type Grant struct {
	Secret string
	Grants string
}

// Policy resolves the permissions of a caller.
//
// Anonymous callers get Default. A caller presenting a configured secret gets
// Default plus that secret's grants.
type Policy struct {
	Default Set
	grants  []grantEntry
}

type grantEntry struct {
	secret []byte
	set    Set
}

func NewPolicy(defaultPerms string, grants []Grant) Policy {
	p := Policy{Default: Parse(defaultPerms)}
	for _, g := range grants {
		secret := strings.TrimSpace(g.Secret)
		if secret == "" {
			continue
		}
		p.grants = append(p.grants, grantEntry{secret: []byte(secret), set: Parse(g.Grants)})
	}
	return p
}

// ForSecret returns the permissions for a caller presenting secret ("" for anonymous).
func (p Policy) ForSecret(secret string) Set {
	secret = strings.TrimSpace(secret)
	out := p.Default.Union(Set{})
	if secret == "" {
		return out
	}
	for _, g := range p.grants {
		// No early return: every grant is compared.
		if subtle.ConstantTimeCompare(g.secret, []byte(secret)) == 1 {
			out = out.Union(g.set)
		}
	}
	return out
}

// Known reports whether secret matches a configured grant.
func (p Policy) Known(secret string) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false
	}
	found := false
	for _, g := range p.grants {
		if subtle.ConstantTimeCompare(g.secret, []byte(secret)) == 1 {
			found = true
		}
	}
	return found
}
