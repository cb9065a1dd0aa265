package stac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/stac"
)

func mustNew(t *testing.T, typ stac.Type, id string) stac.Object {
	obj, err := stac.New(typ, id, "1.0.0")
	require.NoError(t, err)
	return obj
}

func TestSetParentAppendsReciprocalLinks(t *testing.T) {
	parent := mustNew(t, stac.TypeCatalog, "root")
	parent.SetSelfHref("/repo/catalog.json")
	child := mustNew(t, stac.TypeCollection, "c1")
	child.SetSelfHref("/repo/c1/collection.json")

	stac.SetParent(child, parent)

	parentLink := child.Links().First(stac.RelParent)
	require.NotNil(t, parentLink)
	assert.Equal(t, parent.SelfHref(), parentLink.Href)
	assert.Same(t, parent, parentLink.Target)

	childLinks := parent.Links().All(stac.RelChild)
	require.Len(t, childLinks, 1)
	assert.Equal(t, child.SelfHref(), childLinks[0].Href)
	assert.Same(t, child, childLinks[0].Target)
}

func TestSetParentDoesNotDuplicateExistingLink(t *testing.T) {
	parent := mustNew(t, stac.TypeCatalog, "root")
	parent.SetSelfHref("/repo/catalog.json")
	child := mustNew(t, stac.TypeItem, "item1")
	child.SetSelfHref("/repo/item1.json")

	stac.SetParent(child, parent)
	stac.SetParent(child, parent)

	assert.Len(t, parent.Links().All(stac.RelItem), 1)
	assert.Len(t, child.Links().All(stac.RelParent), 1)
}

func TestUnsetParentRemovesReciprocalLink(t *testing.T) {
	parent := mustNew(t, stac.TypeCatalog, "root")
	parent.SetSelfHref("/repo/catalog.json")
	child := mustNew(t, stac.TypeCollection, "c1")
	child.SetSelfHref("/repo/c1/collection.json")
	stac.SetParent(child, parent)

	stac.UnsetParent(child)

	assert.Nil(t, child.Links().First(stac.RelParent))
	assert.Empty(t, parent.Links().All(stac.RelChild))
}

func TestGetVersionItemAndCollection(t *testing.T) {
	item, err := stac.New(stac.TypeItem, "item1", "1.0.0")
	require.NoError(t, err)
	_, err = stac.GetVersion(item)
	assert.True(t, stacerrors.Is(err, stacerrors.StacObjectError))

	coll := mustNew(t, stac.TypeCollection, "c1").(*stac.Collection)
	coll.Version = "2.1.0"
	v, err := stac.GetVersion(coll)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", v)
}
