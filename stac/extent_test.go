package stac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/iostac/memio"
	"github.com/fntb/stac-repository/stac"
)

func newItemWithBboxAndDatetime(t *testing.T, id, href string, bbox []float64, datetime string) *stac.Item {
	item := mustNew(t, stac.TypeItem, id).(*stac.Item)
	item.SetSelfHref(href)
	item.Bbox = bbox
	item.Properties["datetime"] = marshalRaw(t, datetime)
	return item
}

func TestComputeExtentUnionsChildren(t *testing.T) {
	ctx := context.Background()
	io := memio.New("/repo")

	coll := mustNew(t, stac.TypeCollection, "c1").(*stac.Collection)
	coll.SetSelfHref("/repo/c1/collection.json")

	item1 := newItemWithBboxAndDatetime(t, "item1", "/repo/c1/item1/item1.json", []float64{0, 0, 1, 1}, "2020-01-01T00:00:00Z")
	item2 := newItemWithBboxAndDatetime(t, "item2", "/repo/c1/item2/item2.json", []float64{2, 2, 3, 3}, "2021-01-01T00:00:00Z")
	stac.SetParent(item1, coll)
	stac.SetParent(item2, coll)

	extents, err := stac.ComputeExtent(ctx, coll, io)
	require.NoError(t, err)
	require.Len(t, extents, 3)

	overall := extents[0]
	require.Equal(t, [][]float64{{0, 0, 3, 3}}, overall.Spatial.Bbox)
	require.Equal(t, "2020-01-01T00:00:00Z", *overall.Temporal.Interval[0][0])
	require.Equal(t, "2021-01-01T00:00:00Z", *overall.Temporal.Interval[0][1])

	// The collection's own Extent() is updated in place to the overall entry.
	require.Equal(t, overall.Spatial.Bbox, coll.Extent().Spatial.Bbox)
}

func TestComputeExtentPruneRecomputesSmallerBbox(t *testing.T) {
	ctx := context.Background()
	io := memio.New("/repo")

	coll := mustNew(t, stac.TypeCollection, "c1").(*stac.Collection)
	coll.SetSelfHref("/repo/c1/collection.json")

	item2 := newItemWithBboxAndDatetime(t, "item2", "/repo/c1/item2/item2.json", []float64{2, 2, 3, 3}, "2021-01-01T00:00:00Z")
	stac.SetParent(item2, coll)

	extents, err := stac.ComputeExtent(ctx, coll, io)
	require.NoError(t, err)
	require.Equal(t, [][]float64{{2, 2, 3, 3}}, extents[0].Spatial.Bbox)
}

func TestComputeExtentEmptyCollectionErrors(t *testing.T) {
	ctx := context.Background()
	io := memio.New("/repo")

	coll := mustNew(t, stac.TypeCollection, "c1").(*stac.Collection)
	coll.SetSelfHref("/repo/c1/collection.json")

	_, err := stac.ComputeExtent(ctx, coll, io)
	require.Error(t, err)
}
