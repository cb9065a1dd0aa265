package stac

import "encoding/json"

// Rel values used by this repository's navigation logic. STAC documents
// may carry other rel values (alternate, describedby, ...) that this
// module passes through untouched.
const (
	RelSelf   = "self"
	RelRoot   = "root"
	RelParent = "parent"
	RelChild  = "child"
	RelItem   = "item"
)

// Link is one entry of an object's ordered link list. Href is stored
// relative to the owning object's self href on disk (spec §3) but is kept
// absolute in memory; Target is a lazily-resolved pointer into the object
// pool built up during traversal, never an owning reference (spec §9
// "Cyclic object graphs").
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`

	// Target is the resolved object this link points to, or nil if
	// unresolved. A link is "resolved" iff Target != nil (spec §3).
	Target Object `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Resolved reports whether the link's target has been attached.
func (l *Link) Resolved() bool {
	return l.Target != nil
}

var knownLinkFields = map[string]bool{"rel": true, "href": true, "type": true, "title": true}

func (l *Link) MarshalJSON() ([]byte, error) {
	type alias Link
	m, err := marshalWithExtra((*alias)(l), l.Extra)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (l *Link) UnmarshalJSON(data []byte) error {
	type alias Link
	a := (*alias)(l)
	extra, err := unmarshalWithExtra(data, a, knownLinkFields)
	if err != nil {
		return err
	}
	l.Extra = extra
	return nil
}

// Links is an ordered list of Link, the shape every STAC object's "links"
// field takes.
type Links []*Link

// MarshalJSON always emits an array, even for a nil Links, since the STAC
// schema requires "links" to be present and array-typed (a freshly
// constructed Catalog/Collection/Item has no links yet).
func (ls Links) MarshalJSON() ([]byte, error) {
	if ls == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]*Link(ls))
}

// First returns the first link matching rel, or nil.
func (ls Links) First(rel string) *Link {
	for _, l := range ls {
		if l.Rel == rel {
			return l
		}
	}
	return nil
}

// All returns every link matching rel, in document order.
func (ls Links) All(rel string) []*Link {
	var out []*Link
	for _, l := range ls {
		if l.Rel == rel {
			out = append(out, l)
		}
	}
	return out
}

// Append adds l to the end of the list.
func (ls *Links) Append(l *Link) {
	*ls = append(*ls, l)
}

// Remove deletes the first link equal to l by pointer identity. Reports
// whether a link was removed.
func (ls *Links) Remove(l *Link) bool {
	for i, e := range *ls {
		if e == l {
			*ls = append((*ls)[:i], (*ls)[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveByHref deletes the first child/item link whose href equals href.
// Reports whether a link was removed.
func (ls *Links) RemoveByHref(href string) bool {
	for i, e := range *ls {
		if e.Href == href && (e.Rel == RelChild || e.Rel == RelItem) {
			*ls = append((*ls)[:i], (*ls)[i+1:]...)
			return true
		}
	}
	return false
}

// Asset is a binary blob referenced by an Item or Collection. Href is
// relative to the owning object on disk; Target is a handle allowing the
// binary stream to be fetched once resolved.
type Asset struct {
	Key   string `json:"-"` // the map key this asset was stored under
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`

	// Target, if non-empty and different from Href, names the href the
	// asset's bytes currently live at (e.g. the source file during
	// catalog()); Save streams from Target to Href when they differ.
	Target string `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Assets is the href-keyed asset map Items and Collections carry.
type Assets map[string]*Asset

// MarshalJSON always emits an object, even for a nil Assets, since the
// item STAC schema requires "assets" to be present and object-typed.
func (as Assets) MarshalJSON() ([]byte, error) {
	if as == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]*Asset(as))
}

var knownAssetFields = map[string]bool{"href": true, "title": true, "type": true, "roles": true}

func (a *Asset) MarshalJSON() ([]byte, error) {
	type alias Asset
	m, err := marshalWithExtra((*alias)(a), a.Extra)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	type alias Asset
	al := (*alias)(a)
	extra, err := unmarshalWithExtra(data, al, knownAssetFields)
	if err != nil {
		return err
	}
	a.Extra = extra
	return nil
}
