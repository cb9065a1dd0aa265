package stac

import (
	"context"
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// LoadOptions controls how deep Load resolves a tree (spec §4.2 load).
type LoadOptions struct {
	ResolveDescendants bool
	ResolveAssets      bool
}

// Load fetches and decodes the STAC document at href through io,
// classifying it by its "type" field, validating it against that type's
// STAC schema (spec §4.2 "validate against the STAC schema" — every load
// validates unconditionally, not just ingest), promoting every link/asset
// href to absolute form, and setting SelfHref (spec §4.2). When
// opts.ResolveDescendants is set it recurses into child/item links
// transitively; a missing descendant logs a warning and drops the link
// rather than aborting the whole load (spec §4.2), except for href itself
// (the root of this call), whose own failure to resolve is returned as an
// error — see catalog()'s reliance on that distinction (spec §4.4 step 1).
func Load(ctx context.Context, h string, io iostac.Readable, opts LoadOptions) (Object, error) {
	return loadRec(ctx, h, io, opts)
}

func loadRec(ctx context.Context, h string, io iostac.Readable, opts LoadOptions) (Object, error) {
	const op = stacerrors.Op("stac.Load")

	doc, err := io.Get(ctx, h)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.Href(h), err)
	}

	t, err := Classify(doc)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.Href(h), err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(h), err)
	}

	var obj Object
	switch t {
	case TypeItem:
		item := &Item{}
		if err := json.Unmarshal(data, item); err != nil {
			return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(h), err)
		}
		obj = item
	case TypeCollection:
		coll := &Collection{}
		if err := json.Unmarshal(data, coll); err != nil {
			return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(h), err)
		}
		obj = coll
	case TypeCatalog:
		cat := &Catalog{}
		if err := json.Unmarshal(data, cat); err != nil {
			return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(h), err)
		}
		obj = cat
	}
	obj.SetSelfHref(h)

	if err := Validate(t, data); err != nil {
		return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(h), err)
	}

	promoteHrefs(obj, h)

	if opts.ResolveDescendants {
		for _, link := range *obj.Links() {
			if link.Rel != RelChild && link.Rel != RelItem {
				continue
			}
			child, err := loadRec(ctx, link.Href, io, opts)
			if err != nil {
				klog.Warningf("stac.Load: dropping missing descendant link %s -> %s: %v", h, link.Href, err)
				obj.Links().Remove(link)
				continue
			}
			link.Target = child
		}
	}

	if opts.ResolveAssets {
		resolveAssetTargets(obj, h)
	}

	return obj, nil
}

// promoteHrefs joins every link/asset href against self (the document's
// own href), turning the on-disk relative form into the in-memory
// absolute form (spec §3).
func promoteHrefs(obj Object, self string) {
	for _, link := range *obj.Links() {
		link.Href = href.Join(self, link.Href)
	}
	for _, asset := range assetsOf(obj) {
		asset.Target = href.Join(self, asset.Href)
	}
}

func resolveAssetTargets(obj Object, self string) {
	for _, asset := range assetsOf(obj) {
		if asset.Target == "" {
			asset.Target = href.Join(self, asset.Href)
		}
	}
}

// assetsOf returns the asset map of obj if it carries one (Item and
// Collection do; Catalog doesn't), with Key populated from the map key.
func assetsOf(obj Object) []*Asset {
	var m Assets
	switch o := obj.(type) {
	case *Item:
		m = o.Assets()
	case *Collection:
		m = o.Assets()
	default:
		return nil
	}
	out := make([]*Asset, 0, len(m))
	for k, a := range m {
		a.Key = k
		out = append(out, a)
	}
	return out
}

// New constructs an empty Object of the given kind with id and
// stac_version pre-filled, used by Repository.init to build the root
// catalog and by tests.
func New(t Type, id, stacVersion string) (Object, error) {
	switch t {
	case TypeItem:
		i := &Item{Properties: map[string]json.RawMessage{}}
		i.IDField, i.StacVersion_ = id, stacVersion
		return i, nil
	case TypeCollection:
		c := &Collection{License: "proprietary"}
		c.IDField, c.StacVersion_ = id, stacVersion
		return c, nil
	case TypeCatalog:
		c := &Catalog{}
		c.IDField, c.StacVersion_ = id, stacVersion
		return c, nil
	default:
		return nil, fmt.Errorf("unknown STAC type %q", t)
	}
}
