package stac

import (
	"context"

	"k8s.io/klog/v2"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// Delete recursively deletes obj's resolved descendants, then its in-scope
// assets, then obj itself (spec §4.2 delete). Out-of-scope assets (an
// external URI the repository never owned) are skipped.
func Delete(ctx context.Context, obj Object, io iostac.Writable) error {
	const op = stacerrors.Op("stac.Delete")

	for _, link := range *obj.Links() {
		if !link.Resolved() {
			continue
		}
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		if err := Delete(ctx, link.Target, io); err != nil {
			return stacerrors.E(op, err)
		}
	}

	for _, asset := range assetsOf(obj) {
		abs := href.Join(obj.SelfHref(), asset.Href)
		if !href.HasPrefix(abs, io.Base()) {
			klog.Warningf("stac.Delete: skipping out-of-scope asset %s owned by %s", abs, obj.SelfHref())
			continue
		}
		if err := io.Delete(ctx, abs); err != nil {
			if stacerrors.Is(err, stacerrors.FileNotFound) {
				continue
			}
			return stacerrors.E(op, stacerrors.Href(abs), err)
		}
	}

	if err := io.Delete(ctx, obj.SelfHref()); err != nil {
		return stacerrors.E(op, stacerrors.Href(obj.SelfHref()), err)
	}
	return nil
}
