package iostac

import (
	"sort"
	"strings"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
)

// ScopeSet maps href prefixes to the Permission granted under them. An IO
// instance consults the longest matching prefix, the way an HTTP router's
// route table is resolved, so a narrower grant (or denial) can override a
// broader one.
type ScopeSet struct {
	prefixes []string
	perms    map[string]Permission
}

// NewScopeSet builds a ScopeSet rooted at base with the given permission;
// further prefixes are added with Grant.
func NewScopeSet(base string, basePerm Permission) *ScopeSet {
	s := &ScopeSet{perms: map[string]Permission{}}
	s.Grant(base, basePerm)
	return s
}

// Grant adds or extends the permission granted under prefix.
func (s *ScopeSet) Grant(prefix string, perm Permission) {
	prefix = href.Clean(prefix)
	if _, exists := s.perms[prefix]; !exists {
		s.prefixes = append(s.prefixes, prefix)
	}
	s.perms[prefix] |= perm
	sort.Slice(s.prefixes, func(i, j int) bool {
		return len(s.prefixes[i]) > len(s.prefixes[j])
	})
}

// Snapshot returns a copy of the prefix->Permission grants in this set.
func (s *ScopeSet) Snapshot() map[string]Permission {
	out := make(map[string]Permission, len(s.perms))
	for k, v := range s.perms {
		out[k] = v
	}
	return out
}

// Check reports whether href is permitted to want under this scope set,
// using the longest matching prefix.
func (s *ScopeSet) Check(h string, want Permission) bool {
	for _, prefix := range s.prefixes {
		if href.HasPrefix(h, prefix) {
			return s.perms[prefix].Has(want)
		}
	}
	return false
}

// Require returns an href-error if href does not have want permission
// under this scope set.
func (s *ScopeSet) Require(op stacerrors.Op, h string, want Permission) error {
	if s.Check(h, want) {
		return nil
	}
	return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h))
}

// IsHTTP reports whether href uses an http(s) scheme.
func IsHTTP(h string) bool {
	scheme := href.Scheme(h)
	return scheme == "http" || scheme == "https"
}

// IsOutOfScope is a small helper used by callers deciding whether to grant
// a transient, explicitly-opted-in read scope for out-of-scope ingestion
// hrefs (spec §4.4's catalog_out_of_scope/catalog_assets_out_of_scope).
func IsOutOfScope(base, h string) bool {
	return !href.HasPrefix(h, base) && !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://")
}
