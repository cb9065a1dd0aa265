package stac

import "encoding/json"

// Catalog is a plain STAC Catalog: title/description and children only,
// no extent.
type Catalog struct {
	base

	Description string `json:"description"`
	Title       string `json:"title,omitempty"`
}

var _ Object = (*Catalog)(nil)

func (c *Catalog) Type() Type { return TypeCatalog }

func (c *Catalog) MarshalJSON() ([]byte, error) {
	type alias Catalog
	m, err := marshalWithExtra((*alias)(c), c.base.Extra)
	if err != nil {
		return nil, err
	}
	m["type"] = marshalString(string(TypeCatalog))
	return json.Marshal(m)
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	type alias Catalog
	a := (*alias)(c)
	extra, err := unmarshalWithExtra(data, a, knownCatalogFields)
	if err != nil {
		return err
	}
	c.base.Extra = extra
	return nil
}

var knownCatalogFields = map[string]bool{
	"type": true, "id": true, "stac_version": true, "stac_extensions": true,
	"links": true, "description": true, "title": true,
}

// IsLeafKind reports whether parent is an Item, a leaf under which nothing
// may be cataloged (spec §3 invariant 4). The rel a link to a given kind
// must use is ValidChildRel's concern.
func IsLeafKind(parent Object) bool {
	_, ok := parent.(*Item)
	return ok
}

// ValidChildRel returns the rel value ("child" or "item") a link to an
// object of kind t must use.
func ValidChildRel(t Type) string {
	if t == TypeItem {
		return RelItem
	}
	return RelChild
}
