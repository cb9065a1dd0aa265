package memio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac/memio"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")

	doc := map[string]json.RawMessage{"id": json.RawMessage(`"x"`)}
	require.NoError(t, m.Put(ctx, "/repo/catalog.json", doc))

	got, err := m.Get(ctx, "/repo/catalog.json")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestGetMissingIsFileNotFound(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")

	_, err := m.Get(ctx, "/repo/catalog.json")
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.FileNotFound))
}

func TestOutOfScopeReadIsHrefError(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")

	_, err := m.Get(ctx, "/elsewhere/catalog.json")
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.HrefError))
}

func TestPutAssetGetAssetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")

	require.NoError(t, m.PutAsset(ctx, "/repo/a/data.tif", bytes.NewReader([]byte("payload"))))

	r, err := m.GetAsset(ctx, "/repo/a/data.tif")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDeleteRemovesDocAndAsset(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")
	require.NoError(t, m.Put(ctx, "/repo/x.json", map[string]json.RawMessage{}))

	require.NoError(t, m.Delete(ctx, "/repo/x.json"))

	_, err := m.Get(ctx, "/repo/x.json")
	assert.True(t, stacerrors.Is(err, stacerrors.FileNotFound))
}

func TestCloneIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	m := memio.New("/repo")
	require.NoError(t, m.Put(ctx, "/repo/x.json", map[string]json.RawMessage{"a": json.RawMessage(`1`)}))

	clone := m.Clone()
	require.NoError(t, m.Put(ctx, "/repo/y.json", map[string]json.RawMessage{}))

	assert.Len(t, clone.Keys(), 1)
	assert.Len(t, m.Keys(), 2)
}
