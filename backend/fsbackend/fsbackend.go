// Package fsbackend implements backend.Backend directly on a plain
// filesystem (go-billy), journaling pending writes as *.tmp-write siblings and
// pending deletions as *.bck renames, guarded by a single .lock file, per
// spec §4.5 "Filesystem backend" and §5 "Crash recovery".
package fsbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/fntb/stac-repository/backend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
	"github.com/fntb/stac-repository/iostac/fsio"
)

const (
	lockFile       = ".lock"
	commitMetaFile = ".stac-commit.json"
	rootCatalog    = "catalog.json"
	tmpSuffix      = ".tmp-write"
	bckSuffix      = ".bck"
)

// Backend is the filesystem-backed reference implementation. It has
// history depth 1: only the current head commit exists. Each commit gets
// a fresh random UUID as its id; the base href is not used as the id.
type Backend struct {
	mu       sync.Mutex
	fs       billy.Filesystem
	base     string
	realRoot string // host path, used by Backup's raw copy; "" for non-OS filesystems
}

var _ backend.Backend = (*Backend)(nil)

// New returns a Backend rooted at dir, a plain OS directory path.
func New(dir string) *Backend {
	return &Backend{
		fs:       osfs.New(dir),
		base:     href.Clean(dir),
		realRoot: dir,
	}
}

// NewOnFilesystem returns a Backend over an arbitrary go-billy filesystem
// (e.g. memfs, for tests), rooted at base for href bookkeeping. Backup's
// raw directory copy is unavailable on non-OS filesystems.
func NewOnFilesystem(fs billy.Filesystem, base string) *Backend {
	return &Backend{fs: fs, base: href.Clean(base)}
}

func (b *Backend) Init(ctx context.Context) error {
	const op = stacerrors.Op("fsbackend.Init")

	if _, err := b.fs.Stat(rootCatalog); err == nil {
		return stacerrors.E(op, stacerrors.RepositoryAlreadyInitialised, stacerrors.Href(b.base))
	}
	return nil
}

func (b *Backend) Open(ctx context.Context) error {
	const op = stacerrors.Op("fsbackend.Open")

	if err := b.recover(ctx); err != nil {
		return stacerrors.E(op, err)
	}
	if _, err := b.fs.Stat(rootCatalog); err != nil {
		return stacerrors.E(op, stacerrors.RepositoryNotFound, stacerrors.Href(b.base))
	}
	return nil
}

func (b *Backend) Head(ctx context.Context) (backend.CommitInfo, bool, error) {
	info, ok, err := b.readCommitMeta()
	return info, ok, err
}

func (b *Backend) Commits(ctx context.Context) ([]backend.CommitInfo, error) {
	info, ok, err := b.readCommitMeta()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []backend.CommitInfo{info}, nil
}

func (b *Backend) ReaderAt(ctx context.Context, commitID string) (iostac.Readable, error) {
	const op = stacerrors.Op("fsbackend.ReaderAt")

	info, ok, err := b.readCommitMeta()
	if err != nil {
		return nil, err
	}
	if !ok || (commitID != "" && commitID != info.ID) {
		return nil, stacerrors.E(op, stacerrors.CommitNotFound)
	}
	return fsio.New(b.fs, b.base, iostac.ReadStac|iostac.ReadAsset, nil), nil
}

func (b *Backend) Export(ctx context.Context, commitID string, dir string) error {
	reader, err := b.ReaderAt(ctx, commitID)
	if err != nil {
		return err
	}
	return backend.ExportTree(ctx, reader, dir)
}

func (b *Backend) Backup(ctx context.Context, commitID string, url string) error {
	const op = stacerrors.Op("fsbackend.Backup")

	if b.realRoot == "" {
		return stacerrors.E(op, stacerrors.NotSupported, fmt.Errorf("backup is only supported for an OS-backed filesystem backend"))
	}
	if href.Scheme(url) != "" && href.Scheme(url) != "file" {
		return stacerrors.E(op, stacerrors.BackupInvalid, fmt.Errorf("unsupported backup url scheme %q", href.Scheme(url)))
	}
	dest := strings.TrimPrefix(url, "file://")
	if err := copy.Copy(b.realRoot, dest); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}

func (b *Backend) Rollback(ctx context.Context, commitID string) error {
	const op = stacerrors.Op("fsbackend.Rollback")
	return stacerrors.E(op, stacerrors.NotSupported,
		fmt.Errorf("filesystem backend retains only the head commit; there is nothing to roll back to"))
}

// BeginTransaction acquires the exclusive .lock file and returns a Staging
// bound to the current head, or transaction-lock-held if .lock already
// exists (spec §4.4 "shared resources").
func (b *Backend) BeginTransaction(ctx context.Context) (backend.Staging, backend.CommitInfo, bool, error) {
	const op = stacerrors.Op("fsbackend.BeginTransaction")

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.fs.Stat(lockFile); err == nil {
		return nil, backend.CommitInfo{}, false, stacerrors.E(op, stacerrors.TransactionLockHeld, stacerrors.Href(b.base))
	}
	if err := util.WriteFile(b.fs, lockFile, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return nil, backend.CommitInfo{}, false, stacerrors.E(op, err)
	}

	info, ok, err := b.readCommitMeta()
	if err != nil {
		_ = b.fs.Remove(lockFile)
		return nil, backend.CommitInfo{}, false, stacerrors.E(op, err)
	}

	staging := &Staging{
		b:         b,
		scope:     iostac.NewScopeSet(b.base, iostac.ReadStac|iostac.ReadAsset|iostac.WriteStac|iostac.WriteAsset),
		parent:    info,
		hadParent: ok,
	}
	return staging, info, ok, nil
}

// recover runs the crash-recovery classification of spec §5 on Open:
// clean (no journal residue), mid-write / mid-commit (any .tmp-write or
// .bck residue) — both of the latter are recovered identically, by
// rolling back to the last committed state, since a filesystem backend
// keeps no record of which tmp files belonged to a completed rename
// sequence versus an interrupted one.
func (b *Backend) recover(ctx context.Context) error {
	const op = stacerrors.Op("fsbackend.recover")

	tmp, bck, err := b.walkJournal()
	if err != nil {
		return stacerrors.E(op, err)
	}

	if len(tmp) == 0 && len(bck) == 0 {
		if _, err := b.fs.Stat(lockFile); err == nil {
			klog.Warningf("fsbackend: clearing stale lock at %s with no pending writes", b.base)
			if err := b.fs.Remove(lockFile); err != nil {
				return stacerrors.E(op, err)
			}
		}
		return nil
	}

	klog.Warningf("fsbackend: recovering %s: %d pending write(s), %d pending deletion(s); rolling back to last commit",
		b.base, len(tmp), len(bck))

	for _, rel := range tmp {
		if err := b.fs.Remove(rel + tmpSuffix); err != nil && !os.IsNotExist(err) {
			return stacerrors.E(op, err)
		}
	}
	for _, rel := range bck {
		if err := b.fs.Rename(rel+bckSuffix, rel); err != nil {
			return stacerrors.E(op, err)
		}
	}
	if err := b.fs.Remove(lockFile); err != nil && !os.IsNotExist(err) {
		return stacerrors.E(op, err)
	}
	return nil
}

// rel maps an absolute href under b.base to a path relative to b.fs's root.
func (b *Backend) rel(h string) (string, error) {
	if !href.HasPrefix(h, b.base) {
		return "", fmt.Errorf("href %q is not under repository root %q", h, b.base)
	}
	return strings.TrimPrefix(strings.TrimPrefix(h, b.base), "/"), nil
}

// writeCommitMeta persists info as the new (and only) commit record, per
// spec §4.5 "history depth is 1". It goes through the same tmp-write +
// fsync + rename sequence as every other write this backend makes (spec
// §4.1), so a crash between writing the new tree and recording its
// commit metadata never leaves commitMetaFile holding a half-written
// document — Head() either still reports the prior commit or the new one
// whole, never a torn record.
func (b *Backend) writeCommitMeta(info backend.CommitInfo) error {
	data, err := json.MarshalIndent(struct {
		ID       string    `json:"id"`
		Datetime time.Time `json:"datetime"`
		Message  string    `json:"message"`
	}{info.ID, info.Datetime, info.Message}, "", "  ")
	if err != nil {
		return err
	}

	tmp := commitMetaFile + tmpSuffix
	f, err := b.fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = b.fs.Remove(tmp)
		return err
	}
	if s, ok := f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			f.Close()
			_ = b.fs.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return b.fs.Rename(tmp, commitMetaFile)
}

func (b *Backend) readCommitMeta() (backend.CommitInfo, bool, error) {
	const op = stacerrors.Op("fsbackend.readCommitMeta")

	f, err := b.fs.Open(commitMetaFile)
	if err != nil {
		if os.IsNotExist(err) {
			return backend.CommitInfo{}, false, nil
		}
		return backend.CommitInfo{}, false, stacerrors.E(op, err)
	}
	defer f.Close()

	var meta struct {
		ID       string    `json:"id"`
		Datetime time.Time `json:"datetime"`
		Message  string    `json:"message"`
	}
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return backend.CommitInfo{}, false, stacerrors.E(op, stacerrors.JSONObjectError, err)
	}
	return backend.CommitInfo{ID: meta.ID, Datetime: meta.Datetime, Message: meta.Message}, true, nil
}

// walkJournal returns every path under the repository carrying the .tmp-write or
// .bck journal suffix, used by crash recovery and by Staging bookkeeping.
func (b *Backend) walkJournal() (tmp []string, bck []string, err error) {
	err = walkFS(b.fs, "", func(p string, info fs.FileInfo) error {
		switch {
		case strings.HasSuffix(p, tmpSuffix):
			tmp = append(tmp, strings.TrimSuffix(p, tmpSuffix))
		case strings.HasSuffix(p, bckSuffix):
			bck = append(bck, strings.TrimSuffix(p, bckSuffix))
		}
		return nil
	})
	sort.Strings(tmp)
	sort.Strings(bck)
	return tmp, bck, err
}

func walkFS(fsys billy.Filesystem, dir string, cb func(p string, info fs.FileInfo) error) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkFS(fsys, p, cb); err != nil {
				return err
			}
			continue
		}
		if err := cb(p, entry); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	// route klog output to stderr when embedded as a library; callers may
	// reconfigure klog flags themselves.
	klog.SetOutput(os.Stderr)
}
