package process_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fntb/stac-repository/process"
)

func writeItem(t *testing.T, dir string, withVersion bool) string {
	version := ""
	if withVersion {
		version = `, "version": "1.2.3"`
	}
	path := filepath.Join(dir, "item1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "Feature",
		"id": "item1",
		"stac_version": "1.0.0",
		"properties": {"datetime": "2020-01-01T00:00:00Z"`+version+`},
		"bbox": [0, 0, 1, 1],
		"assets": {},
		"links": []
	}`), 0o644))
	return path
}

func TestPassthroughDiscoverReturnsSourceItself(t *testing.T) {
	p := process.NewPassthrough(nil)
	got, err := p.Discover(context.Background(), "/some/source.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/some/source.json"}, got)
}

func TestPassthroughIDAndProcess(t *testing.T) {
	dir := t.TempDir()
	itemHref := writeItem(t, dir, true)

	p := process.NewPassthrough(nil)
	ctx := context.Background()

	id, err := p.ID(ctx, itemHref)
	require.NoError(t, err)
	assert.Equal(t, "item1", id)

	processed, err := p.Process(ctx, itemHref)
	require.NoError(t, err)
	assert.Equal(t, itemHref, processed)
}

func TestPassthroughVersionUsesDeclaredVersion(t *testing.T) {
	dir := t.TempDir()
	itemHref := writeItem(t, dir, true)

	p := process.NewPassthrough(nil)
	v, err := p.Version(context.Background(), itemHref)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
}

func TestPassthroughVersionGeneratesOneWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	itemHref := writeItem(t, dir, false)

	p := process.NewPassthrough(nil)
	v1, err := p.Version(context.Background(), itemHref)
	require.NoError(t, err)
	assert.NotEmpty(t, v1)

	v2, err := p.Version(context.Background(), itemHref)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2, "a fresh random version is generated on every call when none is declared")
}
