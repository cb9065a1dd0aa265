package stac

import "encoding/json"

// Extent is a Collection's spatial/temporal envelope, per spec §3. Index 0
// of each slice is the overall extent. ComputeExtent returns per-child
// entries alongside the overall one but stores only the overall entry
// here, so after ComputeExtent a Collection's own extent holds no
// per-child entries.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// SpatialExtent is a list of bboxes; Bbox[0] is the overall bbox.
type SpatialExtent struct {
	Bbox [][]float64 `json:"bbox"`
}

// TemporalExtent is a list of [start, end] pairs (RFC 3339 strings, either
// of which may be nil, JSON null, to denote open-ended); Interval[0] is
// overall.
type TemporalExtent struct {
	Interval [][2]*string `json:"interval"`
}

// Collection is a STAC Collection: a named set of Items (and/or nested
// Catalogs/Collections) with a rolled-up Extent.
type Collection struct {
	base

	Description string   `json:"description"`
	Title       string   `json:"title,omitempty"`
	License     string   `json:"license"`
	Extent_     Extent   `json:"extent"`
	Providers   json.RawMessage `json:"providers,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	AssetsField Assets   `json:"assets,omitempty"`
	Version     string   `json:"version,omitempty"`
}

var _ Object = (*Collection)(nil)

func (c *Collection) Type() Type { return TypeCollection }

// Extent returns the collection's extent, mutable in place.
func (c *Collection) Extent() *Extent {
	return &c.Extent_
}

// Assets returns the collection's asset map, mutable in place.
func (c *Collection) Assets() Assets {
	if c.AssetsField == nil {
		c.AssetsField = Assets{}
	}
	return c.AssetsField
}

func (c *Collection) MarshalJSON() ([]byte, error) {
	type alias Collection
	m, err := marshalWithExtra((*alias)(c), c.base.Extra)
	if err != nil {
		return nil, err
	}
	m["type"] = marshalString(string(TypeCollection))
	return json.Marshal(m)
}

func (c *Collection) UnmarshalJSON(data []byte) error {
	type alias Collection
	a := (*alias)(c)
	extra, err := unmarshalWithExtra(data, a, knownCollectionFields)
	if err != nil {
		return err
	}
	c.base.Extra = extra
	return nil
}

var knownCollectionFields = map[string]bool{
	"type": true, "id": true, "stac_version": true, "stac_extensions": true,
	"links": true, "description": true, "title": true, "license": true,
	"extent": true, "providers": true, "keywords": true, "assets": true,
	"version": true,
}
