// Package href implements the href join/relativise helpers shared by the
// IO layer and the STAC model. An href is either an absolute filesystem
// path or an absolute URI; this package treats both uniformly as
// slash-separated strings, the way the teacher's kyaml/copyutil packages
// treat package-relative paths.
package href

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// IsAbs reports whether href is an absolute URI (has a scheme) or an
// absolute filesystem path.
func IsAbs(href string) bool {
	if strings.HasPrefix(href, "/") {
		return true
	}
	u, err := url.Parse(href)
	return err == nil && u.Scheme != ""
}

// Join resolves ref against base the way an HTML <a href> or a filesystem
// symlink target would: if ref is already absolute it is returned as-is
// (after cleaning), otherwise it is resolved relative to base's directory.
func Join(base, ref string) string {
	if IsAbs(ref) {
		return Clean(ref)
	}
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		resolved, err := u.Parse(ref)
		if err == nil {
			return resolved.String()
		}
	}
	return Clean(path.Join(path.Dir(base), ref))
}

// Clean normalises an href's path component (collapsing "." and ".."
// segments) without touching a URI scheme/host.
func Clean(href string) string {
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		if u.Path != "" {
			u.Path = path.Clean(u.Path)
		}
		return u.String()
	}
	return path.Clean(href)
}

// Rel returns ref expressed relative to base's directory, the form STAC
// stores link/asset hrefs in on disk. If ref cannot be made relative (e.g.
// different scheme/host) it is returned unchanged (an external href stays
// absolute, per spec §3).
func Rel(base, ref string) string {
	if !IsAbs(ref) {
		return ref
	}
	baseU, errB := url.Parse(base)
	refU, errR := url.Parse(ref)
	if errB == nil && errR == nil && baseU.Scheme != "" {
		if baseU.Scheme != refU.Scheme || baseU.Host != refU.Host {
			return ref
		}
		rel, err := filepath.Rel(path.Dir(baseU.Path), refU.Path)
		if err != nil {
			return ref
		}
		return filepath.ToSlash(rel)
	}
	if !strings.HasPrefix(base, "/") || !strings.HasPrefix(ref, "/") {
		return ref
	}
	rel, err := filepath.Rel(path.Dir(base), ref)
	if err != nil {
		return ref
	}
	return filepath.ToSlash(rel)
}

// Dir returns the directory component of href (the part preceding the
// final slash), preserving any URI scheme.
func Dir(href string) string {
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		u.Path = path.Dir(u.Path)
		return u.String()
	}
	return path.Dir(href)
}

// HasPrefix reports whether href lies within the scope rooted at prefix.
func HasPrefix(href, prefix string) bool {
	href = strings.TrimSuffix(Clean(href), "/")
	prefix = strings.TrimSuffix(Clean(prefix), "/")
	return href == prefix || strings.HasPrefix(href, prefix+"/")
}

// Scheme returns the URI scheme of href, or "" if href is a plain
// filesystem path.
func Scheme(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Scheme
}
