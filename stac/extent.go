package stac

import (
	"context"
	"fmt"
	"time"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac"
)

// leafExtent is the per-node extent used internally while rolling an
// extent up the tree; Catalog nodes compute one transiently (to feed their
// ancestors) without persisting it, since Catalog has no extent field.
type leafExtent struct {
	bbox     []float64
	interval [2]*string // [start, end]; either may be nil (open-ended)
}

// ComputeExtent implements spec §4.2 compute_extent for a Collection: it
// walks child/item links in link order, resolving each child if
// necessary, and returns [overall, child1, child2, ...] in link order. The
// overall entry at index 0 is also written into collection.Extent().
func ComputeExtent(ctx context.Context, collection *Collection, io iostac.Readable) ([]*Extent, error) {
	const op = stacerrors.Op("stac.ComputeExtent")

	overall, children, err := computeChildren(ctx, collection, io)
	if err != nil {
		return nil, err
	}
	if overall == nil {
		return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(collection.SelfHref()),
			fmt.Errorf("collection %q has no descendants to derive an extent from", collection.ID()))
	}

	result := make([]*Extent, 0, len(children)+1)
	result = append(result, leafExtentToExtent(overall))
	for _, c := range children {
		result = append(result, leafExtentToExtent(c))
	}
	*collection.Extent() = *result[0]
	return result, nil
}

// computeObjectExtent computes the extent of any node (spec's recursive
// definition isn't limited to Collections: a Catalog's subtree still needs
// an aggregate extent to feed into an ancestor Collection's own rollup,
// even though Catalog itself never stores one).
func computeObjectExtent(ctx context.Context, obj Object, io iostac.Readable) (*leafExtent, error) {
	const op = stacerrors.Op("stac.computeObjectExtent")

	switch o := obj.(type) {
	case *Item:
		return itemExtent(o)
	case *Collection:
		overall, _, err := computeChildren(ctx, o, io)
		if err != nil {
			return nil, err
		}
		if overall == nil {
			return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(o.SelfHref()),
				fmt.Errorf("collection %q has no descendants to derive an extent from", o.ID()))
		}
		return overall, nil
	case *Catalog:
		overall, _, err := computeChildren(ctx, o, io)
		if err != nil {
			return nil, err
		}
		// An empty (or all-catalog, extent-less) Catalog is simply absent,
		// not an error (spec §4.2).
		return overall, nil
	default:
		return nil, stacerrors.E(op, stacerrors.StacObjectError, fmt.Errorf("unknown object kind %T", obj))
	}
}

// computeChildren walks obj's child/item links in order, resolving and
// recursing into each, and returns the union extent plus each child's own
// extent (nil entries permitted, e.g. an empty nested Catalog).
func computeChildren(ctx context.Context, obj Object, io iostac.Readable) (*leafExtent, []*leafExtent, error) {
	var union *leafExtent
	var children []*leafExtent

	for _, link := range *obj.Links() {
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		target := link.Target
		if target == nil {
			loaded, err := Load(ctx, link.Href, io, LoadOptions{})
			if err != nil {
				return nil, nil, err
			}
			target = loaded
			link.Target = loaded
		}
		ext, err := computeObjectExtent(ctx, target, io)
		if err != nil {
			return nil, nil, err
		}
		children = append(children, ext)
		union = unionExtent(union, ext)
	}
	return union, children, nil
}

func itemExtent(item *Item) (*leafExtent, error) {
	const op = stacerrors.Op("stac.itemExtent")

	bbox := item.Bbox
	if len(bbox) == 0 && len(item.Geometry) > 0 {
		computed, err := bboxFromGeometry(item.Geometry)
		if err != nil {
			return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(item.SelfHref()), err)
		}
		bbox = computed
	}
	if len(bbox) == 0 {
		return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(item.SelfHref()),
			fmt.Errorf("item %q has neither bbox nor geometry", item.ID()))
	}

	var start, end *string
	if dt, ok := item.Datetime(); ok {
		start, end = &dt, &dt
	} else if s, e, ok := item.TemporalRange(); ok {
		start, end = &s, &e
	} else {
		return nil, stacerrors.E(op, stacerrors.StacObjectError, stacerrors.Href(item.SelfHref()),
			fmt.Errorf("item %q has neither datetime nor start/end_datetime", item.ID()))
	}

	return &leafExtent{bbox: bbox, interval: [2]*string{start, end}}, nil
}

func leafExtentToExtent(e *leafExtent) *Extent {
	if e == nil {
		return &Extent{}
	}
	return &Extent{
		Spatial:  SpatialExtent{Bbox: [][]float64{e.bbox}},
		Temporal: TemporalExtent{Interval: [][2]*string{e.interval}},
	}
}

func unionExtent(a, b *leafExtent) *leafExtent {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &leafExtent{
		bbox:     unionBbox(a.bbox, b.bbox),
		interval: unionInterval(a.interval, b.interval),
	}
}

func unionBbox(a, b []float64) []float64 {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	n := len(a) / 2
	if len(b)/2 != n {
		// Mismatched dimensionality; fall back to whichever is larger to
		// avoid panicking on malformed input.
		if len(b) > len(a) {
			return b
		}
		return a
	}
	out := make([]float64, len(a))
	for i := 0; i < n; i++ {
		out[i] = minFloat(a[i], b[i])
		out[n+i] = maxFloat(a[n+i], b[n+i])
	}
	return out
}

func unionInterval(a, b [2]*string) [2]*string {
	return [2]*string{
		minTime(a[0], b[0]),
		maxTime(a[1], b[1]),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// minTime returns the earlier of a and b; a nil value means open-ended
// (unboundedly early) and wins.
func minTime(a, b *string) *string {
	if a == nil || b == nil {
		return nil
	}
	ta, errA := time.Parse(time.RFC3339, *a)
	tb, errB := time.Parse(time.RFC3339, *b)
	if errA != nil || errB != nil {
		if *a <= *b {
			return a
		}
		return b
	}
	if ta.Before(tb) {
		return a
	}
	return b
}

// maxTime returns the later of a and b; a nil value means open-ended
// (unboundedly late) and wins.
func maxTime(a, b *string) *string {
	if a == nil || b == nil {
		return nil
	}
	ta, errA := time.Parse(time.RFC3339, *a)
	tb, errB := time.Parse(time.RFC3339, *b)
	if errA != nil || errB != nil {
		if *a >= *b {
			return a
		}
		return b
	}
	if ta.After(tb) {
		return a
	}
	return b
}
