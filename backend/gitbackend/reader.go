package gitbackend

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// commitReader is a read-only iostac.Readable over one commit's tree,
// reading blobs directly from the object store rather than any worktree
// checkout, so reads at a past commit never disturb the current HEAD
// (spec §4.5 "get(href) at a past commit... via the store's show-at-ref
// primitive").
type commitReader struct {
	tree  *object.Tree
	base  string
	scope *iostac.ScopeSet
}

var _ iostac.Readable = (*commitReader)(nil)

func (r *commitReader) Base() string { return r.base }

func (r *commitReader) rel(h string) (string, error) {
	if !href.HasPrefix(h, r.base) {
		return "", nil
	}
	return strings.TrimPrefix(strings.TrimPrefix(h, r.base), "/"), nil
}

func (r *commitReader) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	const op = stacerrors.Op("gitbackend.commitReader.Get")
	if err := r.scope.Require(op, h, iostac.ReadStac); err != nil {
		return nil, err
	}
	rel, err := r.rel(h)
	if err != nil || rel == "" {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h))
	}
	f, err := r.tree.File(rel)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(h), err)
	}
	return doc, nil
}

func (r *commitReader) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	const op = stacerrors.Op("gitbackend.commitReader.GetAsset")
	if err := r.scope.Require(op, h, iostac.ReadAsset); err != nil {
		return nil, err
	}
	rel, err := r.rel(h)
	if err != nil || rel == "" {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(h))
	}
	f, err := r.tree.File(rel)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h), err)
	}
	rc, err := f.Reader()
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return rc, nil
}
