// Package transaction implements the writable snapshot spec §4.4 calls a
// Transaction: a Commit view with mutation enabled, rooted at the backend
// head at the time it was begun. catalog/uncatalog graft or remove a
// product and re-normalise ancestor extents; commit/abort close out the
// backend's single-writer lock.
package transaction

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/fntb/stac-repository/backend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/internal/ioscope"
	"github.com/fntb/stac-repository/stac"
)

// Transaction is a live write handle. Its zero value is not usable;
// construct one via Begin, and always close it with Commit or Abort on
// every exit path (spec §4.4 "scoped context").
type Transaction struct {
	backend backend.Backend
	staging backend.Staging
	base    backend.CommitInfo
	hadBase bool
}

// Begin acquires the backend's single-writer lock and returns a
// Transaction rooted at its current head. Fails transaction-lock-held if
// another transaction is live (spec §4.4 "construction").
func Begin(ctx context.Context, b backend.Backend) (*Transaction, error) {
	const op = stacerrors.Op("transaction.Begin")

	staging, base, hadBase, err := b.BeginTransaction(ctx)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return &Transaction{backend: b, staging: staging, base: base, hadBase: hadBase}, nil
}

// Base returns the CommitInfo this Transaction is rooted at, or the zero
// value on a fresh, commit-less repository (check HasBase).
func (t *Transaction) Base() backend.CommitInfo { return t.base }

// HasBase reports whether this Transaction is rooted at an existing
// commit, as opposed to an empty repository.
func (t *Transaction) HasBase() bool { return t.hadBase }

func (t *Transaction) rootHref() string {
	return href.Join(t.staging.Base()+"/", "catalog.json")
}

// Search looks up id against this Transaction's current (head plus
// pending writes) state, returning nil if no object carries it. Used by
// Catalog's replace check and by ingest's version comparison.
func (t *Transaction) Search(ctx context.Context, id string) (stac.Object, error) {
	const op = stacerrors.Op("transaction.Search")

	obj, err := stac.Search(ctx, t.rootHref(), id, t.staging)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	return obj, nil
}

// CatalogOptions controls which external hrefs Catalog is permitted to
// follow while loading a product (spec §4.4's three booleans).
type CatalogOptions struct {
	// CatalogAssets permits reading asset bytes from the product's own
	// directory.
	CatalogAssets bool
	// CatalogOutOfScope permits reading arbitrary STAC descendants from
	// anywhere.
	CatalogOutOfScope bool
	// CatalogAssetsOutOfScope permits reading arbitrary asset bytes from
	// anywhere.
	CatalogAssetsOutOfScope bool
}

// Catalog loads the STAC object at productHref and grafts it under
// parentID (the root catalog if parentID is ""), replacing any existing
// object sharing its id, then re-normalises ancestor extents and persists
// the result (spec §4.4 "catalog").
func (t *Transaction) Catalog(ctx context.Context, productHref string, parentID string, opts CatalogOptions) error {
	const op = stacerrors.Op("transaction.Catalog")

	source := ioscope.ForIngest(productHref, opts.CatalogAssets, opts.CatalogOutOfScope, opts.CatalogAssetsOutOfScope)

	product, err := stac.Load(ctx, productHref, source, stac.LoadOptions{
		ResolveDescendants: true,
		ResolveAssets:       true,
	})
	if err != nil {
		return stacerrors.E(op, err)
	}
	stac.UnsetParent(product)

	existing, err := t.Search(ctx, product.ID())
	if err != nil {
		return stacerrors.E(op, err)
	}
	if existing != nil {
		if err := t.Uncatalog(ctx, product.ID()); err != nil && !stacerrors.Is(err, stacerrors.FileNotFound) {
			return stacerrors.E(op, err)
		}
	}

	var parent stac.Object
	if parentID == "" {
		parent, err = stac.Load(ctx, t.rootHref(), t.staging, stac.LoadOptions{})
		if err != nil {
			return stacerrors.E(op, err)
		}
	} else {
		parent, err = stac.Search(ctx, t.rootHref(), parentID, t.staging)
		if err != nil {
			return stacerrors.E(op, err)
		}
		if parent == nil {
			return stacerrors.E(op, stacerrors.CatalogError, stacerrors.Sub("parent-not-found"), stacerrors.Href(productHref))
		}
	}
	if stac.IsLeafKind(parent) {
		return stacerrors.E(op, stacerrors.CatalogError, stacerrors.Sub("parent-is-item"), stacerrors.Href(parent.SelfHref()))
	}

	stac.Relocate(product, productSelfHref(parent, product))
	stac.SetParent(product, parent)

	highest := t.ascendAndRenormalize(ctx, parent)
	if err := stac.Save(ctx, highest, source, t.staging); err != nil {
		return stacerrors.E(op, stacerrors.CatalogError, stacerrors.Sub("save-failed"), err)
	}
	return nil
}

// productSelfHref computes where product lands on disk once grafted
// under parent, following the repository's fixed layout (spec §6):
// base/<id>/catalog.json, base/<...>/<id>/collection.json,
// base/<...>/<id>/<id>.json.
func productSelfHref(parent, product stac.Object) string {
	dir := href.Join(href.Dir(parent.SelfHref())+"/", product.ID()+"/")
	switch product.Type() {
	case stac.TypeCollection:
		return href.Join(dir, "collection.json")
	case stac.TypeCatalog:
		return href.Join(dir, "catalog.json")
	default:
		return href.Join(dir, product.ID()+".json")
	}
}

// Uncatalog removes the object identified by productID and its subtree
// and in-scope assets, then re-normalises ancestor extents (spec §4.4
// "uncatalog").
func (t *Transaction) Uncatalog(ctx context.Context, productID string) error {
	const op = stacerrors.Op("transaction.Uncatalog")

	obj, err := stac.Search(ctx, t.rootHref(), productID, t.staging)
	if err != nil {
		return stacerrors.E(op, err)
	}
	if obj == nil {
		return stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(productID))
	}

	parent, err := stac.LoadParent(ctx, obj, t.staging)
	if err != nil {
		return stacerrors.E(op, err)
	}
	if parent == nil {
		return stacerrors.E(op, stacerrors.UncatalogError, stacerrors.Sub("root"), stacerrors.Href(obj.SelfHref()))
	}
	stac.UnsetParent(obj)

	full, err := stac.Load(ctx, obj.SelfHref(), t.staging, stac.LoadOptions{
		ResolveDescendants: true,
		ResolveAssets:       true,
	})
	if err != nil {
		return stacerrors.E(op, stacerrors.UncatalogError, stacerrors.Sub("save-failed"), err)
	}
	if err := stac.Delete(ctx, full, t.staging); err != nil {
		return stacerrors.E(op, stacerrors.UncatalogError, stacerrors.Sub("save-failed"), err)
	}

	highest := t.ascendAndRenormalize(ctx, parent)
	if err := stac.Save(ctx, highest, t.staging, t.staging); err != nil {
		return stacerrors.E(op, stacerrors.UncatalogError, stacerrors.Sub("save-failed"), err)
	}
	return nil
}

// ascendAndRenormalize walks up the ancestor chain from start,
// recomputing each Collection's extent, and returns the highest ancestor
// reached before either an extent computation failed or the parent chain
// could not be followed further — the "highest still-mutable ancestor"
// spec §4.4 step 6/step 7 has Save persist. Failures here are logged, not
// returned: they are a degraded-extents condition, not fatal (spec §4.4
// "Failure semantics", §7).
func (t *Transaction) ascendAndRenormalize(ctx context.Context, start stac.Object) stac.Object {
	current := start
	for {
		if coll, ok := current.(*stac.Collection); ok {
			if _, err := stac.ComputeExtent(ctx, coll, t.staging); err != nil {
				klog.Warningf("transaction: degraded extents at %s: %v", current.SelfHref(), err)
				break
			}
		}
		next, err := stac.LoadParent(ctx, current, t.staging)
		if err != nil {
			klog.Warningf("transaction: ancestor chain broken above %s: %v", current.SelfHref(), err)
			break
		}
		if next == nil {
			break
		}
		// Point next's link at the in-memory current so that Save(highest)
		// reaches every modified ancestor, not just the topmost one.
		for _, l := range *next.Links() {
			if (l.Rel == stac.RelChild || l.Rel == stac.RelItem) && l.Href == current.SelfHref() {
				l.Target = current
			}
		}
		current = next
	}
	return current
}

// Commit finalises every pending write as one new commit with message,
// releases the lock, and returns the new CommitInfo (spec §4.4 "commit").
func (t *Transaction) Commit(ctx context.Context, message string) (backend.CommitInfo, error) {
	const op = stacerrors.Op("transaction.Commit")

	info, err := t.staging.Commit(ctx, message)
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}
	return info, nil
}

// Abort discards every pending write, returning the backend to its
// pre-transaction state, and releases the lock (spec §4.4 "abort").
func (t *Transaction) Abort(ctx context.Context) error {
	const op = stacerrors.Op("transaction.Abort")

	if err := t.staging.Abort(ctx); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}
