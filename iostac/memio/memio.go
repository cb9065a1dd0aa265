// Package memio is an in-memory iostac.Writable used by tests, modeled on
// the teacher's engine/fake test doubles (porch/pkg/engine/fake).
package memio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
)

// IO is a simple in-memory store keyed by href, guarded by a mutex so it
// can be shared across a Commit view and a live Transaction in tests.
type IO struct {
	mu     sync.RWMutex
	base   string
	scope  *iostac.ScopeSet
	docs   map[string]map[string]json.RawMessage
	assets map[string][]byte
}

var (
	_ iostac.Readable = (*IO)(nil)
	_ iostac.Writable = (*IO)(nil)
)

// New returns an empty in-memory IO rooted at base with full read+write
// permission under it.
func New(base string) *IO {
	return &IO{
		base:   href.Clean(base),
		scope:  iostac.NewScopeSet(base, iostac.ReadStac|iostac.ReadAsset|iostac.WriteStac|iostac.WriteAsset),
		docs:   map[string]map[string]json.RawMessage{},
		assets: map[string][]byte{},
	}
}

// Clone returns a deep copy of the store, so a test can snapshot its
// contents cheaply.
func (m *IO) Clone() *IO {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := New(m.base)
	for k, v := range m.docs {
		cp := make(map[string]json.RawMessage, len(v))
		for fk, fv := range v {
			cp[fk] = append(json.RawMessage(nil), fv...)
		}
		c.docs[k] = cp
	}
	for k, v := range m.assets {
		c.assets[k] = append([]byte(nil), v...)
	}
	return c
}

func (m *IO) Base() string { return m.base }

func (m *IO) Get(ctx context.Context, h string) (map[string]json.RawMessage, error) {
	const op = stacerrors.Op("memio.Get")
	if err := m.scope.Require(op, h, iostac.ReadStac); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[h]
	if !ok {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h))
	}
	cp := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp, nil
}

func (m *IO) GetAsset(ctx context.Context, h string) (io.ReadCloser, error) {
	const op = stacerrors.Op("memio.GetAsset")
	if err := m.scope.Require(op, h, iostac.ReadAsset); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.assets[h]
	if !ok {
		return nil, stacerrors.E(op, stacerrors.FileNotFound, stacerrors.Href(h))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *IO) Put(ctx context.Context, h string, doc map[string]json.RawMessage) error {
	const op = stacerrors.Op("memio.Put")
	if err := m.scope.Require(op, h, iostac.WriteStac); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[h] = doc
	return nil
}

func (m *IO) PutAsset(ctx context.Context, h string, r io.Reader) error {
	const op = stacerrors.Op("memio.PutAsset")
	if err := m.scope.Require(op, h, iostac.WriteAsset); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[h] = data
	return nil
}

func (m *IO) Delete(ctx context.Context, h string) error {
	const op = stacerrors.Op("memio.Delete")
	if err := m.scope.Require(op, h, iostac.WriteStac|iostac.WriteAsset); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, h)
	delete(m.assets, h)
	return nil
}

// Keys returns every stac document href currently stored, for test
// assertions.
func (m *IO) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	return out
}
