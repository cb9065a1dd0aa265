package repo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/backend"
	"github.com/fntb/stac-repository/backend/fsbackend"
	"github.com/fntb/stac-repository/backend/gitbackend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/repo"
	"github.com/fntb/stac-repository/stac"
	"github.com/fntb/stac-repository/transaction"
)

// contractBackends is the shared contract test suite spec §8 promises:
// every invariant/round-trip-law/boundary scenario below runs once per
// backend implementation, the way porch shares scenarios across its fake
// and git repository backends (porch/pkg/engine/fake,
// porch/pkg/git/testing.go).
var contractBackends = map[string]func(dir string) backend.Backend{
	"fsbackend":  func(dir string) backend.Backend { return fsbackend.New(dir) },
	"gitbackend": func(dir string) backend.Backend { return gitbackend.New(dir) },
}

// contractRepo initialises a fresh repository on backend b and returns the
// Repository (for Ingest/Prune/history); scenarios that need lower-level
// Transaction calls use b directly.
func contractRepo(t *testing.T, b backend.Backend) *repo.Repository {
	t.Helper()
	ctx := context.Background()
	root, err := stac.New(stac.TypeCatalog, "root", "1.0.0")
	require.NoError(t, err)
	r, err := repo.Init(ctx, b, root)
	require.NoError(t, err)
	return r
}

func forEachBackend(t *testing.T, run func(t *testing.T, b backend.Backend)) {
	for name, newBackend := range contractBackends {
		newBackend := newBackend
		t.Run(name, func(t *testing.T) {
			run(t, newBackend(t.TempDir()))
		})
	}
}

func contractWriteProduct(t *testing.T, dir, collectionID string) string {
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
		"id": "`+collectionID+`",
		"stac_version": "1.0.0",
		"description": "a product",
		"license": "proprietary",
		"extent": {"spatial": {"bbox": [[0,0,0,0]]}, "temporal": {"interval": [[null,null]]}},
		"links": [{"rel": "item", "href": "item1/item1.json"}]
	}`), 0o644))

	return collPath
}

func exportFiles(t *testing.T, ctx context.Context, b backend.Backend, commitID string) map[string]string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, b.Export(ctx, commitID, dir))

	out := map[string]string{}
	require.NoError(t, filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[rel] = string(data)
		return nil
	}))
	return out
}

// TestContractCatalogThenUncatalogReturnsToOriginalState is R1: catalog(X,
// P); uncatalog(X.id) from a state S returns to S — the same committed
// tree bytes, except for commit metadata.
func TestContractCatalogThenUncatalogReturnsToOriginalState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		r := contractRepo(t, b)

		before, _, err := r.Head(ctx)
		require.NoError(t, err)
		beforeFiles := exportFiles(t, ctx, b, before.ID())

		productDir := t.TempDir()
		productHref := contractWriteProduct(t, productDir, "C")

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		_, err = tx.Commit(ctx, "catalog C")
		require.NoError(t, err)

		tx2, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx2.Uncatalog(ctx, "C"))
		after, err := tx2.Commit(ctx, "uncatalog C")
		require.NoError(t, err)

		afterFiles := exportFiles(t, ctx, b, after.ID)
		assert.Equal(t, beforeFiles, afterFiles)
	})
}

// TestContractCatalogTwiceIsIdempotent is R2: catalog(X, P); catalog(X, P)
// is equivalent to catalog(X, P) alone — the second call replaces the
// first's output identically when X is byte-identical.
func TestContractCatalogTwiceIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		contractRepo(t, b)

		productDir := t.TempDir()
		productHref := contractWriteProduct(t, productDir, "C")

		tx1, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx1.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		once, err := tx1.Commit(ctx, "catalog C once")
		require.NoError(t, err)

		tx2, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx2.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		twice, err := tx2.Commit(ctx, "catalog C twice")
		require.NoError(t, err)

		onceFiles := exportFiles(t, ctx, b, once.ID)
		twiceFiles := exportFiles(t, ctx, b, twice.ID)
		assert.Equal(t, onceFiles, twiceFiles)
	})
}

// TestContractCatalogUnderItemFails is B1: cataloging under an Item fails
// catalog-error:parent-is-item with no side effects.
func TestContractCatalogUnderItemFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		contractRepo(t, b)

		productDir := t.TempDir()
		productHref := contractWriteProduct(t, productDir, "C")

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		before, err := tx.Commit(ctx, "catalog C")
		require.NoError(t, err)
		beforeFiles := exportFiles(t, ctx, b, before.ID)

		productDir2 := t.TempDir()
		productHref2 := contractWriteProduct(t, productDir2, "D")

		tx2, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		err = tx2.Catalog(ctx, productHref2, "item1", transaction.CatalogOptions{})
		require.Error(t, err)
		assert.True(t, stacerrors.Is(err, stacerrors.CatalogError))
		require.NoError(t, tx2.Abort(ctx))

		head, _, err := b.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.ID, head.ID)
		afterFiles := exportFiles(t, ctx, b, head.ID)
		assert.Equal(t, beforeFiles, afterFiles)
	})
}

// TestContractUncatalogRootFails is B2: uncataloging the root fails
// uncatalog-error:root.
func TestContractUncatalogRootFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		contractRepo(t, b)

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		err = tx.Uncatalog(ctx, "root")
		require.Error(t, err)
		assert.True(t, stacerrors.Is(err, stacerrors.UncatalogError))
		require.NoError(t, tx.Abort(ctx))
	})
}

// TestContractAbortLeavesBackendUnchanged is B3: abort after any sequence
// of catalog/uncatalog calls leaves the backend bit-identical to the
// pre-transaction commit.
func TestContractAbortLeavesBackendUnchanged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		r := contractRepo(t, b)

		before, _, err := r.Head(ctx)
		require.NoError(t, err)
		beforeFiles := exportFiles(t, ctx, b, before.ID())

		productDir := t.TempDir()
		productHref := contractWriteProduct(t, productDir, "C")

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		require.NoError(t, tx.Abort(ctx))

		head, _, err := b.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.ID(), head.ID)
		afterFiles := exportFiles(t, ctx, b, head.ID)
		assert.Equal(t, beforeFiles, afterFiles)
	})
}

// TestContractSecondTransactionWhileLiveFails is B4: starting a second
// Transaction while one is live fails transaction-lock-held.
func TestContractSecondTransactionWhileLiveFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		contractRepo(t, b)

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		defer tx.Abort(ctx)

		_, err = transaction.Begin(ctx, b)
		require.Error(t, err)
		assert.True(t, stacerrors.Is(err, stacerrors.TransactionLockHeld))
	})
}

// TestContractExtentMatchesFreshRecompute is I3: for every Collection C,
// C.extent[0] equals the union of C's descendant extents, computed from
// scratch against the committed tree.
func TestContractExtentMatchesFreshRecompute(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := context.Background()
		contractRepo(t, b)

		productDir := t.TempDir()
		productHref := contractWriteProduct(t, productDir, "C")

		tx, err := transaction.Begin(ctx, b)
		require.NoError(t, err)
		require.NoError(t, tx.Catalog(ctx, productHref, "", transaction.CatalogOptions{}))
		info, err := tx.Commit(ctx, "catalog C")
		require.NoError(t, err)

		reader, err := b.ReaderAt(ctx, info.ID)
		require.NoError(t, err)
		loadedRoot, err := stac.Load(ctx, reader.Base()+"/catalog.json", reader, stac.LoadOptions{
			ResolveDescendants: true,
		})
		require.NoError(t, err)
		coll := loadedRoot.Links().First(stac.RelChild).Target.(*stac.Collection)
		catalogued := *coll.Extent()

		fresh, err := stac.ComputeExtent(ctx, coll, reader)
		require.NoError(t, err)
		assert.Equal(t, catalogued.Spatial.Bbox, fresh[0].Spatial.Bbox)
		assert.Equal(t, [][]float64{{0, 0, 1, 1}}, fresh[0].Spatial.Bbox)
	})
}
