// Package backend defines the storage-backend contract a Repository
// drives: lifecycle (init/open), commit history, and the single-writer
// staging area a Transaction writes through before it is made visible by
// Commit (spec §4.4, §4.5, §5). The two reference implementations are
// backend/fsbackend (plain files + a lock file) and backend/gitbackend (a
// local go-git repository), grounded on the teacher's porch/pkg/git.
package backend

import (
	"context"
	"time"

	"github.com/fntb/stac-repository/iostac"
)

// CommitInfo is the metadata a backend reports for one commit (spec §3
// "Commit").
type CommitInfo struct {
	ID       string
	Datetime time.Time
	Message  string
	// ParentID is the id of the commit this one followed, or "" at the
	// first commit.
	ParentID string
}

// Backend is the storage contract spec §4.5 "Repository" drives.
type Backend interface {
	// Init creates a fresh, empty repository at the backend's configured
	// location. Fails with repository-already-initialised if non-empty.
	Init(ctx context.Context) error

	// Open binds to an existing repository, running crash recovery (spec
	// §4.5, §5). Fails with repository-not-found if no repository marker
	// is present.
	Open(ctx context.Context) error

	// Head returns the current head commit, or ok=false on a repository
	// with no commits yet.
	Head(ctx context.Context) (CommitInfo, bool, error)

	// Commits returns commit history, most recent first.
	Commits(ctx context.Context) ([]CommitInfo, error)

	// ReaderAt returns a read-only IO view of the tree as of commit id.
	ReaderAt(ctx context.Context, commitID string) (iostac.Readable, error)

	// BeginTransaction acquires the single-writer lock and returns a
	// Staging through which a Transaction performs its writes, plus the
	// CommitInfo it is based on (the head at acquisition time). Fails with
	// transaction-lock-held if another transaction is live.
	BeginTransaction(ctx context.Context) (Staging, CommitInfo, bool, error)

	// Export materialises the tree as of commitID into dir as a plain
	// directory tree.
	Export(ctx context.Context, commitID string, dir string) error

	// Backup copies the tree as of commitID to url. Returns
	// errors.NotSupported if the backend doesn't implement it, or
	// errors.BackupInvalid if url isn't a scheme this backend understands.
	Backup(ctx context.Context, commitID string, url string) error

	// Rollback makes commitID the new head. Returns errors.NotSupported
	// if the backend can't represent history rewrites.
	Rollback(ctx context.Context, commitID string) error
}

// Staging is the writable surface a live Transaction uses. It behaves
// like iostac.Writable for the pending change set, but also exposes the
// commit/abort boundary (spec §4.4).
type Staging interface {
	iostac.Writable

	// Commit finalises every pending write as one new commit with
	// message, releases the lock, and returns the new CommitInfo.
	Commit(ctx context.Context, message string) (CommitInfo, error)

	// Abort discards every pending write, returning the backend to its
	// pre-transaction state, and releases the lock.
	Abort(ctx context.Context) error
}
