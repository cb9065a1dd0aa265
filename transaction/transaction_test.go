package transaction_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/backend"
	"github.com/fntb/stac-repository/backend/fsbackend"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/stac"
	"github.com/fntb/stac-repository/transaction"
)

func newTempRepo(t *testing.T) *fsbackend.Backend {
	dir := t.TempDir()
	b := fsbackend.New(dir)
	require.NoError(t, b.Init(context.Background()))
	writeRootCatalog(t, b)
	return b
}

func writeRootCatalog(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	staging, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)

	root, err := stac.New(stac.TypeCatalog, "root", "1.0.0")
	require.NoError(t, err)
	root.SetSelfHref(href.Join(staging.Base()+"/", "catalog.json"))
	doc, err := stac.RawDoc(root)
	require.NoError(t, err)
	require.NoError(t, staging.Put(ctx, root.SelfHref(), doc))
	_, err = staging.Commit(ctx, "init")
	require.NoError(t, err)
}

// writeProduct writes a Collection with one child Item to dir, returning
// the Collection's href, ready to be passed to Transaction.Catalog.
func writeProduct(t *testing.T, dir string) string {
	collPath := filepath.Join(dir, "collection.json")
	itemPath := filepath.Join(dir, "item1", "item1.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(itemPath), 0o755))

	require.NoError(t, os.WriteFile(itemPath, []byte(`{
		"type": "Feature",
		"id": "item1",
		"stac_version": "1.0.0",
		"properties": {"datetime": "2020-01-01T00:00:00Z"},
		"bbox": [0, 0, 1, 1],
		"assets": {},
		"links": []
	}`), 0o644))

	require.NoError(t, os.WriteFile(collPath, []byte(`{
		"type": "Collection",
		"id": "C",
		"stac_version": "1.0.0",
		"description": "a product",
		"license": "proprietary",
		"extent": {"spatial": {"bbox": [[0,0,0,0]]}, "temporal": {"interval": [[null,null]]}},
		"links": [{"rel": "item", "href": "item1/item1.json"}]
	}`), 0o644))

	return collPath
}

func TestCatalogGraftsProductAndComputesExtent(t *testing.T) {
	ctx := context.Background()
	b := newTempRepo(t)
	productDir := t.TempDir()
	productHref := writeProduct(t, productDir)

	tx, err := transaction.Begin(ctx, b)
	require.NoError(t, err)

	require.NoError(t, tx.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))

	info, err := tx.Commit(ctx, "ingest C")
	require.NoError(t, err)

	reader, err := b.ReaderAt(ctx, info.ID)
	require.NoError(t, err)
	root, err := stac.Load(ctx, href.Join(reader.Base()+"/", "catalog.json"), reader, stac.LoadOptions{
		ResolveDescendants: true,
	})
	require.NoError(t, err)

	childLink := root.Links().First(stac.RelChild)
	require.NotNil(t, childLink)
	require.True(t, childLink.Resolved())
	coll := childLink.Target.(*stac.Collection)
	require.Equal(t, "C", coll.ID())
	require.Equal(t, [][]float64{{0, 0, 1, 1}}, coll.Extent().Spatial.Bbox)

	itemLink := coll.Links().First(stac.RelItem)
	require.NotNil(t, itemLink)
	require.True(t, itemLink.Resolved())
	require.Equal(t, "item1", itemLink.Target.ID())
}

func TestUncatalogRemovesProductAndAscends(t *testing.T) {
	ctx := context.Background()
	b := newTempRepo(t)
	productDir := t.TempDir()
	productHref := writeProduct(t, productDir)

	tx1, err := transaction.Begin(ctx, b)
	require.NoError(t, err)
	require.NoError(t, tx1.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
	_, err = tx1.Commit(ctx, "ingest C")
	require.NoError(t, err)

	tx2, err := transaction.Begin(ctx, b)
	require.NoError(t, err)
	require.NoError(t, tx2.Uncatalog(ctx, "C"))
	info2, err := tx2.Commit(ctx, "prune C")
	require.NoError(t, err)

	reader, err := b.ReaderAt(ctx, info2.ID)
	require.NoError(t, err)
	found, err := stac.Search(ctx, href.Join(reader.Base()+"/", "catalog.json"), "C", reader)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestCatalogReplacesExistingProductWithSameID(t *testing.T) {
	ctx := context.Background()
	b := newTempRepo(t)
	productDir := t.TempDir()
	productHref := writeProduct(t, productDir)

	tx1, err := transaction.Begin(ctx, b)
	require.NoError(t, err)
	require.NoError(t, tx1.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
	_, err = tx1.Commit(ctx, "ingest C v1")
	require.NoError(t, err)

	tx2, err := transaction.Begin(ctx, b)
	require.NoError(t, err)
	require.NoError(t, tx2.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
	info2, err := tx2.Commit(ctx, "ingest C v2")
	require.NoError(t, err)

	reader, err := b.ReaderAt(ctx, info2.ID)
	require.NoError(t, err)
	root, err := stac.Load(ctx, href.Join(reader.Base()+"/", "catalog.json"), reader, stac.LoadOptions{
		ResolveDescendants: true,
	})
	require.NoError(t, err)
	require.Len(t, root.Links().All(stac.RelChild), 1)
}
