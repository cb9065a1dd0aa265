package backend

import (
	"context"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/iostac"
	"github.com/fntb/stac-repository/iostac/fsio"
	"github.com/fntb/stac-repository/stac"
)

// ExportTree materialises the whole tree visible through reader (the root
// catalog at reader.Base()+"/catalog.json" and every descendant) into dir
// as a self-contained best-practices-layout catalog, by loading the full
// tree and saving it through a filesystem IO rooted at dir. This is shared
// by every Backend's Export implementation (spec §4.3 "export(dir)") so
// the on-disk layout is identical regardless of which backend produced
// the commit.
func ExportTree(ctx context.Context, reader iostac.Readable, dir string) error {
	rootHref := href.Join(reader.Base()+"/", "catalog.json")

	root, err := stac.Load(ctx, rootHref, reader, stac.LoadOptions{
		ResolveDescendants: true,
		ResolveAssets:       true,
	})
	if err != nil {
		return err
	}

	out := fsio.New(osfs.New(dir), dir, iostac.WriteStac|iostac.WriteAsset|iostac.ReadStac|iostac.ReadAsset, nil)
	newRootHref := href.Join(dir+"/", "catalog.json")
	stac.Relocate(root, newRootHref)

	return stac.Save(ctx, root, reader, out)
}
