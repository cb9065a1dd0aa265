package fsbackend_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/backend/fsbackend"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
)

func rootDoc() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"type":         json.RawMessage(`"Catalog"`),
		"id":           json.RawMessage(`"root"`),
		"stac_version": json.RawMessage(`"1.0.0"`),
		"description":  json.RawMessage(`"root"`),
		"links":        json.RawMessage(`[]`),
	}
}

func TestInitThenOpen(t *testing.T) {
	ctx := context.Background()
	b := fsbackend.NewOnFilesystem(memfs.New(), "/repo")

	require.NoError(t, b.Init(ctx))

	staging, _, hadBase, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	assert.False(t, hadBase)
	require.NoError(t, staging.Put(ctx, "/repo/catalog.json", rootDoc()))
	_, err = staging.Commit(ctx, "init")
	require.NoError(t, err)

	require.NoError(t, b.Open(ctx))
	head, ok, err := b.Head(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "init", head.Message)
}

func TestInitTwiceFails(t *testing.T) {
	ctx := context.Background()
	b := fsbackend.NewOnFilesystem(memfs.New(), "/repo")
	require.NoError(t, b.Init(ctx))

	staging, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, staging.Put(ctx, "/repo/catalog.json", rootDoc()))
	_, err = staging.Commit(ctx, "init")
	require.NoError(t, err)

	err = b.Init(ctx)
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.RepositoryAlreadyInitialised))
}

func TestBeginTransactionWhileLockedFails(t *testing.T) {
	ctx := context.Background()
	b := fsbackend.NewOnFilesystem(memfs.New(), "/repo")
	require.NoError(t, b.Init(ctx))

	_, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)

	_, _, _, err = b.BeginTransaction(ctx)
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.TransactionLockHeld))
}

func TestAbortDiscardsPendingWrites(t *testing.T) {
	ctx := context.Background()
	b := fsbackend.NewOnFilesystem(memfs.New(), "/repo")
	require.NoError(t, b.Init(ctx))

	staging, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, staging.Put(ctx, "/repo/catalog.json", rootDoc()))
	require.NoError(t, staging.Abort(ctx))

	_, ok, err := b.Head(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// The lock must be released so a later transaction can begin.
	_, _, _, err = b.BeginTransaction(ctx)
	require.NoError(t, err)
}

func TestOpenRecoversStaleTmpWrite(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	b := fsbackend.NewOnFilesystem(fs, "/repo")
	require.NoError(t, b.Init(ctx))

	staging, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, staging.Put(ctx, "/repo/catalog.json", rootDoc()))
	_, err = staging.Commit(ctx, "init")
	require.NoError(t, err)

	// Simulate a crash mid second transaction: a .tmp-write left behind,
	// lock file still present.
	staging2, _, _, err := b.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, staging2.Put(ctx, "/repo/c1/collection.json", rootDoc()))

	b2 := fsbackend.NewOnFilesystem(fs, "/repo")
	require.NoError(t, b2.Open(ctx))

	head, ok, err := b2.Head(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "init", head.Message)

	// The lock is released; a new transaction can begin.
	_, _, _, err = b2.BeginTransaction(ctx)
	require.NoError(t, err)
}
