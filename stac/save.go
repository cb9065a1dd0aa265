package stac

import (
	"context"
	"encoding/json"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// Save writes obj to its SelfHref through writer, and recursively saves
// every resolved descendant first, so that a reader who sees the parent
// after a crash never sees it reference a missing child (spec §4.2 save:
// "parent last after all descendants"). Every asset whose Target differs
// from its Href (not yet written at its final location) is streamed there,
// read through reader — normally the same IO an asset was originally
// loaded from, which may have a different base than writer (e.g. a
// product being cataloged from outside the repository).
func Save(ctx context.Context, obj Object, reader iostac.Readable, writer iostac.Writable) error {
	const op = stacerrors.Op("stac.Save")

	for _, link := range *obj.Links() {
		if !link.Resolved() {
			continue
		}
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		if err := Save(ctx, link.Target, reader, writer); err != nil {
			return stacerrors.E(op, err)
		}
	}

	for _, asset := range assetsOf(obj) {
		abs := href.Join(obj.SelfHref(), asset.Href)
		if asset.Target != "" && asset.Target != abs {
			if err := streamAsset(ctx, reader, writer, asset.Target, abs); err != nil {
				return stacerrors.E(op, stacerrors.Href(abs), err)
			}
			asset.Target = abs
		}
	}

	doc, err := toDoc(obj)
	if err != nil {
		return stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(obj.SelfHref()), err)
	}
	if err := writer.Put(ctx, obj.SelfHref(), doc); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}

func streamAsset(ctx context.Context, reader iostac.Readable, writer iostac.Writable, from, to string) error {
	r, err := reader.GetAsset(ctx, from)
	if err != nil {
		return err
	}
	defer r.Close()
	return writer.PutAsset(ctx, to, r)
}

// toDoc marshals obj back to a map[string]json.RawMessage with link/asset
// hrefs rewritten to be relative to obj's own self href, the on-disk form
// (spec §3).
func toDoc(obj Object) (map[string]json.RawMessage, error) {
	self := obj.SelfHref()

	// Temporarily relativise link hrefs for serialisation, then restore
	// the in-memory absolute form. Object JSON marshaling doesn't take a
	// "base" parameter, so we rewrite in place around the Marshal call.
	originalLinks := make([]string, len(*obj.Links()))
	for i, link := range *obj.Links() {
		originalLinks[i] = link.Href
		link.Href = href.Rel(self, link.Href)
	}
	defer func() {
		for i, link := range *obj.Links() {
			link.Href = originalLinks[i]
		}
	}()

	for _, asset := range assetsOf(obj) {
		asset.Href = href.Rel(self, asset.Target)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
