package httpio_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac/httpio"
)

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "root"}`))
	})
	mux.HandleFunc("/asset.tif", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetFetchesAndDecodesDocument(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	hio := httpio.New(nil, false)

	doc, err := hio.Get(ctx, srv.URL+"/catalog.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{"id": json.RawMessage(`"root"`)}, doc)
}

func TestGetMissingIsFileNotFound(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	hio := httpio.New(nil, false)

	_, err := hio.Get(ctx, srv.URL+"/does-not-exist.json")
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.FileNotFound))
}

func TestGetAssetDeniedWithoutAllowAssets(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	hio := httpio.New(nil, false)

	_, err := hio.GetAsset(ctx, srv.URL+"/asset.tif")
	require.Error(t, err)
	assert.True(t, stacerrors.Is(err, stacerrors.HrefError))
}

func TestGetAssetAllowedWithAllowAssets(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	hio := httpio.New(nil, true)

	r, err := hio.GetAsset(ctx, srv.URL+"/asset.tif")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
