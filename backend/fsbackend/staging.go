package fsbackend

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/fntb/stac-repository/backend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac"
)

// Staging is the writable view a live Transaction sees between
// BeginTransaction and Commit/Abort. Writes land as a .tmp-write sibling
// of their final path and deletions preserve the original as a .bck
// sibling, so nothing is observable outside the transaction until Commit
// renames everything into place (spec §4.4, §4.5).
type Staging struct {
	b         *Backend
	scope     *iostac.ScopeSet
	parent    backend.CommitInfo
	hadParent bool
}

var _ backend.Staging = (*Staging)(nil)

func (s *Staging) Base() string { return s.b.base }

func (s *Staging) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	const op = stacerrors.Op("fsbackend.Staging.Get")
	if err := s.scope.Require(op, h, iostac.ReadStac); err != nil {
		return nil, err
	}
	rel, err := s.b.rel(h)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}

	path := rel
	if _, err := s.b.fs.Stat(rel + tmpSuffix); err == nil {
		path = rel + tmpSuffix
	} else if _, err := s.b.fs.Stat(rel + bckSuffix); err == nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h))
	}

	f, err := s.b.fs.Open(path)
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

func (s *Staging) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	const op = stacerrors.Op("fsbackend.Staging.GetAsset")
	if err := s.scope.Require(op, h, iostac.ReadAsset); err != nil {
		return nil, err
	}
	rel, err := s.b.rel(h)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}

	path := rel
	if _, err := s.b.fs.Stat(rel + tmpSuffix); err == nil {
		path = rel + tmpSuffix
	} else if _, err := s.b.fs.Stat(rel + bckSuffix); err == nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h))
	}

	f, err := s.b.fs.Open(path)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	return f, nil
}

func (s *Staging) Put(ctx context.Context, h string, doc map[string]json.RawMessage) error {
	const op = stacerrors.Op("fsbackend.Staging.Put")
	if err := s.scope.Require(op, h, iostac.WriteStac); err != nil {
		return err
	}
	rel, err := s.b.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return stacerrors.E(op, stacerrors.JSONObjectError, err)
	}
	if err := util.WriteFile(s.b.fs, rel+tmpSuffix, data, 0o644); err != nil {
		return stacerrors.E(op, stacerrors.Href(h), err)
	}
	return nil
}

func (s *Staging) PutAsset(ctx context.Context, h string, r io.Reader) error {
	const op = stacerrors.Op("fsbackend.Staging.PutAsset")
	if err := s.scope.Require(op, h, iostac.WriteAsset); err != nil {
		return err
	}
	rel, err := s.b.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}
	f, err := s.b.fs.Create(rel + tmpSuffix)
	if err != nil {
		return stacerrors.E(op, stacerrors.Href(h), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.b.fs.Remove(rel + tmpSuffix)
		return stacerrors.E(op, stacerrors.Href(h), err)
	}
	if err := f.Close(); err != nil {
		return stacerrors.E(op, stacerrors.Href(h), err)
	}
	return nil
}

// Delete stages a pending deletion: if a committed copy exists, it is
// renamed to its .bck sibling so Abort can restore it; any .tmp-write for
// the same path (an uncommitted write within this same transaction) is
// simply discarded.
func (s *Staging) Delete(ctx context.Context, h string) error {
	const op = stacerrors.Op("fsbackend.Staging.Delete")
	if err := s.scope.Require(op, h, iostac.WriteStac|iostac.WriteAsset); err != nil {
		return err
	}
	rel, err := s.b.rel(h)
	if err != nil {
		return stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h), err)
	}

	hadTmp := false
	if _, err := s.b.fs.Stat(rel + tmpSuffix); err == nil {
		hadTmp = true
		if err := s.b.fs.Remove(rel + tmpSuffix); err != nil {
			return stacerrors.E(op, stacerrors.Href(h), err)
		}
	}
	if _, err := s.b.fs.Stat(rel); err == nil {
		if err := s.b.fs.Rename(rel, rel+bckSuffix); err != nil {
			return stacerrors.E(op, stacerrors.Href(h), err)
		}
		return nil
	}
	if _, err := s.b.fs.Stat(rel + bckSuffix); err == nil {
		return nil
	}
	if hadTmp {
		return nil
	}
	return stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h))
}

// Commit finalises every pending write and deletion as one new commit and
// releases the lock. Renames happen write-first, then deletion-cleanup, so
// that interrupting at any step still classifies as mid-commit under
// recover (spec §5 "commit must perform renames in an order such that
// interrupting at any step yields a recoverable state").
func (s *Staging) Commit(ctx context.Context, message string) (backend.CommitInfo, error) {
	const op = stacerrors.Op("fsbackend.Staging.Commit")

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	tmp, bck, err := s.b.walkJournal()
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}

	for _, rel := range tmp {
		if err := s.b.fs.Rename(rel+tmpSuffix, rel); err != nil {
			return backend.CommitInfo{}, stacerrors.E(op, err)
		}
	}
	for _, rel := range bck {
		if err := s.b.fs.Remove(rel + bckSuffix); err != nil && !os.IsNotExist(err) {
			return backend.CommitInfo{}, stacerrors.E(op, err)
		}
	}

	info := backend.CommitInfo{
		ID:       uuid.NewString(),
		Datetime: time.Now().UTC(),
		Message:  message,
	}
	if s.hadParent {
		info.ParentID = s.parent.ID
	}
	if err := s.b.writeCommitMeta(info); err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}
	if err := s.b.fs.Remove(lockFile); err != nil {
		klog.Warningf("fsbackend: releasing lock after commit: %v", err)
	}
	return info, nil
}

// Abort discards every pending write and restores every pending deletion's
// pre-image, returning the repository to its pre-transaction state.
func (s *Staging) Abort(ctx context.Context) error {
	const op = stacerrors.Op("fsbackend.Staging.Abort")

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	tmp, bck, err := s.b.walkJournal()
	if err != nil {
		return stacerrors.E(op, err)
	}

	for _, rel := range tmp {
		if err := s.b.fs.Remove(rel + tmpSuffix); err != nil && !os.IsNotExist(err) {
			return stacerrors.E(op, err)
		}
	}
	for _, rel := range bck {
		if err := s.b.fs.Rename(rel+bckSuffix, rel); err != nil {
			return stacerrors.E(op, err)
		}
	}
	if err := s.b.fs.Remove(lockFile); err != nil {
		klog.Warningf("fsbackend: releasing lock after abort: %v", err)
	}
	return nil
}
