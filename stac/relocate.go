package stac

import "github.com/fntb/stac-repository/internal/href"

// Relocate rewrites obj's self href to newSelf and recursively updates
// every resolved child/item link so the relative layout between obj and
// its descendants is preserved at the new location. Asset hrefs are left
// untouched — they stay relative to their owning object, which Save
// resolves against that object's (now relocated) self href. Used whenever
// a tree is persisted under a different root than it was loaded from:
// exporting a commit, and grafting a cataloged product into the
// repository tree (spec §4.2 save, §4.4 catalog).
func Relocate(obj Object, newSelf string) {
	relocateRec(obj, obj.SelfHref(), newSelf)
}

func relocateRec(obj Object, oldSelf, newSelf string) {
	for _, link := range *obj.Links() {
		if !link.Resolved() {
			continue
		}
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		rel := href.Rel(oldSelf, link.Href)
		childNewHref := href.Join(newSelf, rel)
		relocateRec(link.Target, link.Href, childNewHref)
		if p := link.Target.Links().First(RelParent); p != nil && p.Href == oldSelf {
			p.Href = newSelf
		}
		link.Href = childNewHref
	}
	obj.SetSelfHref(newSelf)
}
