package stac_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/stac"
)

func TestRelocatePreservesRelativeLayout(t *testing.T) {
	root := mustNew(t, stac.TypeCatalog, "root")
	root.SetSelfHref("/old/catalog.json")

	child := mustNew(t, stac.TypeCollection, "c1").(*stac.Collection)
	child.SetSelfHref("/old/c1/collection.json")
	stac.SetParent(child, root)

	item := mustNew(t, stac.TypeItem, "item1").(*stac.Item)
	item.SetSelfHref("/old/c1/item1/item1.json")
	stac.SetParent(item, child)

	stac.Relocate(root, "/new/catalog.json")

	require.Equal(t, "/new/catalog.json", root.SelfHref())
	require.Equal(t, "/new/c1/collection.json", child.SelfHref())
	require.Equal(t, "/new/c1/item1/item1.json", item.SelfHref())

	childLink := root.Links().First(stac.RelChild)
	require.Equal(t, child.SelfHref(), childLink.Href)
	itemLink := child.Links().First(stac.RelItem)
	require.Equal(t, item.SelfHref(), itemLink.Href)
}
