// Package iostac defines the Readable/Writable IO capability interfaces
// STAC objects and assets are read and written through (spec §4.1), and
// the scope/permission model every concrete IO (filesystem, http, memory)
// enforces identically.
package iostac

import (
	"context"
	"encoding/json"
	"io"
)

// Permission is one of the four capabilities a scope prefix may grant.
type Permission int

const (
	ReadStac Permission = 1 << iota
	ReadAsset
	WriteStac
	WriteAsset
)

func (p Permission) Has(want Permission) bool { return p&want == want }

// Readable is the read-only IO capability a Commit view requires.
type Readable interface {
	// Get fetches and JSON-decodes the document at href.
	Get(ctx context.Context, href string) (map[string]json.RawMessage, error)
	// GetAsset opens a scoped byte stream for the asset at href. Callers
	// must Close the returned stream on every exit path.
	GetAsset(ctx context.Context, href string) (io.ReadCloser, error)
	// Base returns the IO's configured base href.
	Base() string
}

// Writable extends Readable with the mutating operations a Transaction
// requires.
type Writable interface {
	Readable
	// Put JSON-encodes doc and writes it to href.
	Put(ctx context.Context, href string, doc map[string]json.RawMessage) error
	// PutAsset streams r to href without buffering it whole in memory.
	PutAsset(ctx context.Context, href string, r io.Reader) error
	// Delete removes the document or asset at href.
	Delete(ctx context.Context, href string) error
}
