// Package commitview implements the read-only point-in-time snapshot spec
// §4.3 calls a Commit view: a commit's metadata, its backing read-only IO,
// and the navigation operations (search, export, backup, rollback) that
// only need read access to the tree.
package commitview

import (
	"context"
	"time"

	"github.com/fntb/stac-repository/backend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
	"github.com/fntb/stac-repository/stac"
)

// Commit is a point-in-time read handle rooted at one backend commit. Its
// zero value is not usable; construct one via Open.
type Commit struct {
	backend backend.Backend
	info    backend.CommitInfo
	reader  iostac.Readable
}

// Open binds a Commit view to info, a CommitInfo previously returned by
// backend.Head, backend.Commits, or backend.Staging.Commit.
func Open(ctx context.Context, b backend.Backend, info backend.CommitInfo) (*Commit, error) {
	const op = stacerrors.Op("commitview.Open")

	reader, err := b.ReaderAt(ctx, info.ID)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return &Commit{backend: b, info: info, reader: reader}, nil
}

// ID returns the commit's opaque identifier.
func (c *Commit) ID() string { return c.info.ID }

// Datetime returns the commit's recorded time.
func (c *Commit) Datetime() time.Time { return c.info.Datetime }

// Message returns the commit's message, if any.
func (c *Commit) Message() string { return c.info.Message }

// HasParent reports whether this commit has a predecessor.
func (c *Commit) HasParent() bool { return c.info.ParentID != "" }

// Parent lazily walks to the commit this one followed, or nil at the
// first commit (spec §4.3 "parent (lazy walker)").
func (c *Commit) Parent(ctx context.Context) (*Commit, error) {
	const op = stacerrors.Op("commitview.Commit.Parent")

	if !c.HasParent() {
		return nil, nil
	}
	history, err := c.backend.Commits(ctx)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	for _, info := range history {
		if info.ID == c.info.ParentID {
			return Open(ctx, c.backend, info)
		}
	}
	return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Sub(c.info.ParentID))
}

// Reader returns the read-only IO view of this commit's tree.
func (c *Commit) Reader() iostac.Readable { return c.reader }

// rootHref is the commit's root catalog href.
func (c *Commit) rootHref() string { return href.Join(c.reader.Base()+"/", "catalog.json") }

// Root loads the commit's root catalog.
func (c *Commit) Root(ctx context.Context) (stac.Object, error) {
	return stac.Load(ctx, c.rootHref(), c.reader, stac.LoadOptions{})
}

// Search performs a depth-first search for id from this commit's root
// catalog (spec §4.3 search).
func (c *Commit) Search(ctx context.Context, id string) (stac.Object, error) {
	const op = stacerrors.Op("commitview.Commit.Search")

	obj, err := stac.Search(ctx, c.rootHref(), id, c.reader)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return obj, nil
}

// Export materialises this commit's entire tree into dir as a
// self-contained catalog (spec §4.3 export).
func (c *Commit) Export(ctx context.Context, dir string) error {
	const op = stacerrors.Op("commitview.Commit.Export")
	if err := c.backend.Export(ctx, c.info.ID, dir); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}

// Backup copies this commit's full content to url, or fails not-supported
// / backup-invalid per the backend's capabilities (spec §4.3 backup).
func (c *Commit) Backup(ctx context.Context, url string) error {
	const op = stacerrors.Op("commitview.Commit.Backup")
	if err := c.backend.Backup(ctx, c.info.ID, url); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}

// Rollback makes this commit the new head, or fails not-supported if the
// backend cannot represent history rewrites (spec §4.3 rollback).
func (c *Commit) Rollback(ctx context.Context) error {
	const op = stacerrors.Op("commitview.Commit.Rollback")
	if err := c.backend.Rollback(ctx, c.info.ID); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}
