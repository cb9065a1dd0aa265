// Package fsio implements iostac.Readable/Writable over a go-billy
// filesystem, the same abstraction go-git itself is built on. Passing
// osfs.New gives a plain OS filesystem IO; passing memfs.New gives an
// in-process one, which is what the fsio and fsbackend tests use to
// exercise the same code path without touching disk.
package fsio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"k8s.io/klog/v2"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// IO is the default filesystem-backed implementation of
// iostac.Readable/iostac.Writable.
type IO struct {
	fs    billy.Filesystem
	base  string
	scope *iostac.ScopeSet
}

var (
	_ iostac.Readable = (*IO)(nil)
	_ iostac.Writable = (*IO)(nil)
)

// New returns an IO rooted at base (an absolute path or URI used only for
// href bookkeeping; fs is consulted using paths relative to its own
// root), with base granted perm and any additional scope grants applied.
func New(fs billy.Filesystem, base string, perm iostac.Permission, extra *iostac.ScopeSet) *IO {
	scope := iostac.NewScopeSet(base, perm)
	if extra != nil {
		for prefix, p := range extra.Snapshot() {
			scope.Grant(prefix, p)
		}
	}
	return &IO{fs: fs, base: href.Clean(base), scope: scope}
}

func (io_ *IO) Base() string { return io_.base }

// rel maps an absolute href under io_.base to a path relative to io_.fs's
// root; hrefs outside base must be handled by the caller (they're out of
// this filesystem's reach, even if the scope set permits reading them
// elsewhere, e.g. via httpio).
func (io_ *IO) rel(h string) (string, error) {
	if !href.HasPrefix(h, io_.base) {
		return "", fmt.Errorf("href %q is not under filesystem root %q", h, io_.base)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(h, io_.base), "/")
	return rel, nil
}

func (io_ *IO) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	const op = stacerrors.Op("fsio.Get")
	if err := io_.scope.Require(op, h, iostac.ReadStac); err != nil {
		return nil, err
	}
	rel, err := io_.rel(h)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	f, err := io_.fs.Open(rel)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	defer f.Close()

	var doc map[string]json.RawMessage
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(h), err)
	}
	return doc, nil
}

func (io_ *IO) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	const op = stacerrors.Op("fsio.GetAsset")
	if err := io_.scope.Require(op, h, iostac.ReadAsset); err != nil {
		return nil, err
	}
	rel, err := io_.rel(h)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	f, err := io_.fs.Open(rel)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	return f, nil
}

func (io_ *IO) Put(ctx context.Context, h string, doc map[string]json.RawMessage) error {
	const op = stacerrors.Op("fsio.Put")
	if err := io_.scope.Require(op, h, iostac.WriteStac); err != nil {
		return err
	}
	rel, err := io_.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return stacerrors.E(op, stacerrors.JSONObjectError, err)
	}
	return atomicWrite(io_.fs, rel, data)
}

func (io_ *IO) PutAsset(ctx context.Context, h string, r io.Reader) error {
	const op = stacerrors.Op("fsio.PutAsset")
	if err := io_.scope.Require(op, h, iostac.WriteAsset); err != nil {
		return err
	}
	rel, err := io_.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	return atomicWriteStream(io_.fs, rel, r)
}

func (io_ *IO) Delete(ctx context.Context, h string) error {
	const op = stacerrors.Op("fsio.Delete")
	if err := io_.scope.Require(op, h, iostac.WriteStac|iostac.WriteAsset); err != nil {
		return err
	}
	rel, err := io_.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	if err := io_.fs.Remove(rel); err != nil {
		klog.Warningf("fsio: delete %q: %v", h, err)
		return stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	return nil
}

// atomicWrite writes data to a temporary sibling file, fsyncs it, and
// renames it into place, per spec §4.1 "put writes via a temporary
// sibling file and atomic rename after fsync".
func atomicWrite(fs billy.Filesystem, path string, data []byte) error {
	tmp := path + ".tmp-write"
	f, err := fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := syncFile(f); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fs.Rename(tmp, path)
}

// atomicWriteStream is the streaming counterpart of atomicWrite: it never
// buffers the whole asset, copying r directly into the temporary sibling
// file before fsync and rename (spec §9 "Large-asset streaming").
func atomicWriteStream(fs billy.Filesystem, path string, r io.Reader) error {
	tmp := path + ".tmp-write"
	f, err := fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := syncFile(f); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fs.Rename(tmp, path)
}

// syncFile flushes f to stable storage when the underlying billy.File
// exposes Sync (osfs's files, backed by *os.File, do); memfs, the
// in-memory filesystem this module's tests run against, has nothing to
// flush and simply doesn't implement the interface, so this is a no-op
// there.
func syncFile(f billy.File) error {
	if s, ok := f.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
