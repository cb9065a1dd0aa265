// Package httpio implements the read-only, explicitly opt-in IO used to
// ingest STAC documents and assets living at http(s):// hrefs (spec §4.1
// "read-only under http(s):// when explicitly enabled for out-of-scope
// ingestion").
package httpio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/iostac"
)

// IO is a Readable-only client over http(s) hrefs.
type IO struct {
	client *http.Client
	scope  *iostac.ScopeSet
}

var _ iostac.Readable = (*IO)(nil)

// New returns an IO that permits reading STAC documents, and optionally
// assets, from any http(s) href. Asset reads are a separate, narrower
// grant because spec §4.4 ties them to their own opt-in flag
// (catalog_assets_out_of_scope).
func New(client *http.Client, allowAssets bool) *IO {
	if client == nil {
		client = http.DefaultClient
	}
	scope := iostac.NewScopeSet("http://", iostac.ReadStac)
	scope.Grant("https://", iostac.ReadStac)
	if allowAssets {
		scope.Grant("http://", iostac.ReadAsset)
		scope.Grant("https://", iostac.ReadAsset)
	}
	return &IO{client: client, scope: scope}
}

func (h *IO) Base() string { return "" }

func (h *IO) fetch(ctx context.Context, op stacerrors.Op, href string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.HrefError, stacerrors.Href(href), err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(href), err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(href))
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(href),
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	return resp.Body, nil
}

func (h *IO) Get(ctx context.Context, href string) (map[string]json.RawMessage, error) {
	const op = stacerrors.Op("httpio.Get")
	if err := h.scope.Require(op, href, iostac.ReadStac); err != nil {
		return nil, err
	}
	body, err := h.fetch(ctx, op, href)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var doc map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(href), err)
	}
	return doc, nil
}

func (h *IO) GetAsset(ctx context.Context, href string) (io.ReadCloser, error) {
	const op = stacerrors.Op("httpio.GetAsset")
	if err := h.scope.Require(op, href, iostac.ReadAsset); err != nil {
		return nil, err
	}
	return h.fetch(ctx, op, href)
}
