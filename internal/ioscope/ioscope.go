// Package ioscope assembles the ad hoc iostac.Readable a Transaction uses
// to load a product being cataloged: the product may live anywhere on the
// local filesystem or behind http(s), and spec §4.4's three booleans
// widen or narrow which hrefs that load is permitted to follow, the same
// longest-prefix-match scope the rest of the IO layer enforces.
package ioscope

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
	"github.com/fntb/stac-repository/iostac/fsio"
	"github.com/fntb/stac-repository/iostac/httpio"
)

// ForIngest returns a Readable scoped for loading productHref and,
// depending on the three flags, its descendants and assets outside its
// own directory (spec §4.4 "catalog_assets", "catalog_out_of_scope",
// "catalog_assets_out_of_scope").
func ForIngest(productHref string, catalogAssets, catalogOutOfScope, catalogAssetsOutOfScope bool) iostac.Readable {
	dir := href.Dir(productHref)

	scope := iostac.NewScopeSet(dir, iostac.ReadStac)
	if catalogAssets {
		scope.Grant(dir, iostac.ReadAsset)
	}
	if catalogOutOfScope {
		scope.Grant("/", iostac.ReadStac)
	}
	if catalogAssetsOutOfScope {
		scope.Grant("/", iostac.ReadAsset)
	}

	fsReader := fsio.New(osfs.New("/"), "/", 0, scope)
	httpReader := httpio.New(nil, catalogAssets || catalogAssetsOutOfScope)

	return &external{fs: fsReader, http: httpReader}
}

// Unrestricted returns a Readable with unconditional ReadStac/ReadAsset
// permission across the local filesystem and http(s), used by a Processor
// discovering and reading arbitrary ingest sources — the Transaction's
// catalog scoping flags govern grafting the discovered product into the
// repository, not a processor's ability to read its own sources.
func Unrestricted(client *http.Client) iostac.Readable {
	scope := iostac.NewScopeSet("/", iostac.ReadStac|iostac.ReadAsset)
	fsReader := fsio.New(osfs.New("/"), "/", 0, scope)
	httpReader := httpio.New(client, true)
	return &external{fs: fsReader, http: httpReader}
}

// external dispatches a Get/GetAsset call to whichever of its two
// delegate Readables understands href's scheme; Base is unscoped since
// callers use it only to resolve an absolute href before fetching, never
// to derive a relative one.
type external struct {
	fs   iostac.Readable
	http iostac.Readable
}

var _ iostac.Readable = (*external)(nil)

func (e *external) Base() string { return "" }

func (e *external) pick(h string) iostac.Readable {
	if iostac.IsHTTP(h) {
		return e.http
	}
	return e.fs
}

func (e *external) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	return e.pick(h).Get(ctx, h)
}

func (e *external) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	return e.pick(h).GetAsset(ctx, h)
}
