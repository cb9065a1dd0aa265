package stac

import (
	"context"
	"encoding/json"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac"
)

// LoadParent follows obj's parent link, if any, returning nil at the root
// (spec §4.2 load_parent).
func LoadParent(ctx context.Context, obj Object, io iostac.Readable) (Object, error) {
	const op = stacerrors.Op("stac.LoadParent")

	link := obj.Links().First(RelParent)
	if link == nil {
		return nil, nil
	}
	if link.Resolved() {
		return link.Target, nil
	}
	parent, err := Load(ctx, link.Href, io, LoadOptions{})
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	link.Target = parent
	return parent, nil
}

// SetParent adds the reciprocal parent/child-or-item link pair between
// child and parent, replacing any existing parent link on child and
// appending to parent's link list only if an equivalent link isn't
// already present (spec §4.2 set_parent: "append to the end if absent; do
// not duplicate").
func SetParent(child, parent Object) {
	UnsetParent(child)

	child.Links().Append(&Link{
		Rel:    RelParent,
		Href:   parent.SelfHref(),
		Target: parent,
	})

	rel := ValidChildRel(child.Type())
	for _, l := range *parent.Links() {
		if l.Rel == rel && l.Href == child.SelfHref() {
			l.Target = child
			return
		}
	}
	parent.Links().Append(&Link{
		Rel:    rel,
		Href:   child.SelfHref(),
		Target: child,
	})
}

// UnsetParent removes child's parent link (if any) and the reciprocal
// child/item link from its former parent, when the parent is resolved.
func UnsetParent(child Object) {
	link := child.Links().First(RelParent)
	if link == nil {
		return
	}
	child.Links().Remove(link)
	if link.Target != nil {
		link.Target.Links().RemoveByHref(child.SelfHref())
	}
}

// Search performs a depth-first walk from rootHref looking for an object
// whose id equals id, returning nil if none is found (spec §4.2 search).
// Self-href re-visitation is used to break cycles defensively, even
// though the repository's invariants (spec §3 invariant 2) make the tree
// acyclic by construction.
func Search(ctx context.Context, rootHref, id string, io iostac.Readable) (Object, error) {
	const op = stacerrors.Op("stac.Search")

	visited := map[string]bool{}
	obj, err := searchRec(ctx, rootHref, id, io, visited)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return obj, nil
}

func searchRec(ctx context.Context, h, id string, io iostac.Readable, visited map[string]bool) (Object, error) {
	if visited[h] {
		return nil, nil
	}
	visited[h] = true

	obj, err := Load(ctx, h, io, LoadOptions{})
	if err != nil {
		return nil, err
	}
	if obj.ID() == id {
		return obj, nil
	}
	for _, link := range *obj.Links() {
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		found, err := searchRec(ctx, link.Href, id, io, visited)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// GetVersion reads an object's declared version (spec §4.2 get_version):
// properties.version for Items, .version for Collections/Catalogs.
// Returns a *version-not-found* flavoured stac-object-error if absent.
func GetVersion(obj Object) (string, error) {
	const op = stacerrors.Op("stac.GetVersion")

	switch o := obj.(type) {
	case *Item:
		if v, ok := o.Version(); ok {
			return v, nil
		}
	case *Collection:
		if o.Version != "" {
			return o.Version, nil
		}
	case *Catalog:
		// Catalog has no typed version field; "version" is kept in Extra.
		if raw, ok := o.Extra["version"]; ok {
			var v string
			if err := json.Unmarshal(raw, &v); err == nil && v != "" {
				return v, nil
			}
		}
	}
	return "", stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Sub("version-not-found"),
		stacerrors.Href(obj.SelfHref()))
}

// RawDoc re-marshals obj to a generic map, used by callers (e.g. export)
// that need the on-disk JSON shape without going through an IO's Put.
func RawDoc(obj Object) (map[string]json.RawMessage, error) {
	return toDoc(obj)
}
