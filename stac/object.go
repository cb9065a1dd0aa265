// Package stac implements the typed STAC object model (Item, Collection,
// Catalog) and its navigation operations: load, save, delete, search,
// parent rewiring and extent computation. It is deliberately independent
// of any storage backend; all I/O goes through the iostac.Readable/
// iostac.Writable capabilities passed in by the caller.
package stac

import (
	"encoding/json"
	"fmt"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
)

// Type identifies which of the three STAC object kinds a document is.
type Type string

const (
	TypeItem       Type = "Feature"
	TypeCollection Type = "Collection"
	TypeCatalog    Type = "Catalog"
)

// Object is the tagged STAC-object interface implemented by *Item,
// *Collection and *Catalog. Behaviour that differs per kind (extent
// computation, which parent kinds are valid, which child kinds may be
// attached) is dispatched by a type switch on Object rather than by
// shared-base inheritance, per spec §9 "Polymorphic STAC object".
type Object interface {
	// ID returns the object's unique id.
	ID() string
	// Type reports which STAC kind this object is.
	Type() Type
	// SelfHref returns where this object lives; not serialised into the
	// JSON body.
	SelfHref() string
	// SetSelfHref updates the in-memory self href (used by load/save).
	SetSelfHref(href string)
	// Links returns the object's ordered link list, mutable in place.
	Links() *Links
	// StacVersion returns the advertised STAC specification version.
	StacVersion() string
}

// base holds the fields common to Item, Collection and Catalog. It is
// embedded, not inherited from, by the three concrete types: each type
// still implements Object's methods explicitly where behaviour differs.
type base struct {
	IDField      string          `json:"id"`
	StacVersion_ string          `json:"stac_version"`
	Extensions   []string        `json:"stac_extensions,omitempty"`
	LinksField   Links           `json:"links"`
	selfHref     string          `json:"-"`
	Extra        map[string]json.RawMessage `json:"-"`
}

func (b *base) ID() string          { return b.IDField }
func (b *base) SelfHref() string    { return b.selfHref }
func (b *base) SetSelfHref(h string) { b.selfHref = h }
func (b *base) Links() *Links       { return &b.LinksField }
func (b *base) StacVersion() string { return b.StacVersion_ }

// Classify inspects a decoded JSON document's "type" field and reports
// which STAC Type it is, per spec §4.2 "Load". Unrecognised/missing type
// is a *stac-object-error*.
func Classify(doc map[string]json.RawMessage) (Type, error) {
	raw, ok := doc["type"]
	if !ok {
		return "", stacerrors.E(stacerrors.StacObjectError, fmt.Errorf("document has no \"type\" field"))
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", stacerrors.E(stacerrors.StacObjectError, err)
	}
	switch Type(t) {
	case TypeItem:
		return TypeItem, nil
	case TypeCollection:
		return TypeCollection, nil
	case TypeCatalog:
		return TypeCatalog, nil
	default:
		return "", stacerrors.E(stacerrors.StacObjectError, fmt.Errorf("unknown STAC type %q", t))
	}
}
