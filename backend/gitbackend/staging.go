package gitbackend

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"k8s.io/klog/v2"

	"github.com/fntb/stac-repository/backend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac"
)

// Staging writes directly into the worktree (via an iostac.IO rooted on
// the worktree's billy.Filesystem) the same way porch's gitPackageDraft
// stages resource changes before a commit; nothing is recorded as a
// revision until Commit runs Add + Commit.
type Staging struct {
	b         *Backend
	wt        *git.Worktree
	io        iostac.Writable
	parent    backend.CommitInfo
	hadParent bool
}

var _ backend.Staging = (*Staging)(nil)

func (s *Staging) Base() string { return s.io.Base() }

func (s *Staging) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	return s.io.Get(ctx, h)
}

func (s *Staging) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	return s.io.GetAsset(ctx, h)
}

func (s *Staging) Put(ctx context.Context, h string, doc map[string]json.RawMessage) error {
	return s.io.Put(ctx, h, doc)
}

func (s *Staging) PutAsset(ctx context.Context, h string, r io.Reader) error {
	return s.io.PutAsset(ctx, h, r)
}

func (s *Staging) Delete(ctx context.Context, h string) error {
	return s.io.Delete(ctx, h)
}

// Commit stages every changed path in the worktree and records a new
// revision, grounded on the teacher's commitPackageToMain/gitPackageDraft
// commit step, simplified to a single whole-tree commit per transaction
// rather than porch's per-package subtree bookkeeping.
func (s *Staging) Commit(ctx context.Context, message string) (backend.CommitInfo, error) {
	const op = stacerrors.Op("gitbackend.Staging.Commit")

	status, err := s.wt.Status()
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}
	for p, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		if st.Worktree == git.Deleted {
			if _, err := s.wt.Remove(p); err != nil {
				return backend.CommitInfo{}, stacerrors.E(op, err)
			}
			continue
		}
		if _, err := s.wt.Add(p); err != nil {
			return backend.CommitInfo{}, stacerrors.E(op, err)
		}
	}

	now := time.Now().UTC()
	hash, err := s.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  signatureName,
			Email: signatureEmail,
			When:  now,
		},
	})
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}

	info := backend.CommitInfo{ID: hash.String(), Datetime: now, Message: message}
	if s.hadParent {
		info.ParentID = s.parent.ID
	}
	return info, nil
}

// Abort discards every staged and unstaged change, returning the worktree
// to head.
func (s *Staging) Abort(ctx context.Context) error {
	const op = stacerrors.Op("gitbackend.Staging.Abort")

	head, ok, err := s.b.Head(ctx)
	if err != nil {
		return stacerrors.E(op, err)
	}
	if !ok {
		if err := s.wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
			klog.Warningf("gitbackend: abort on empty repository: %v", err)
		}
		return nil
	}
	if err := s.wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(head.ID), Mode: git.HardReset}); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}
