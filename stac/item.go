package stac

import "encoding/json"

// Item is a STAC Feature: a leaf of the tree, carrying geometry, a bbox
// and/or a datetime, and its assets. Items may not have children (spec §3
// invariant 4).
type Item struct {
	base

	Geometry   json.RawMessage        `json:"geometry,omitempty"`
	Bbox       []float64              `json:"bbox,omitempty"`
	Properties map[string]json.RawMessage `json:"properties"`
	AssetsField Assets                `json:"assets"`
	Collection string                 `json:"collection,omitempty"`
}

var _ Object = (*Item)(nil)

func (i *Item) Type() Type { return TypeItem }

// Assets returns the item's asset map, mutable in place.
func (i *Item) Assets() Assets {
	if i.AssetsField == nil {
		i.AssetsField = Assets{}
	}
	return i.AssetsField
}

// Datetime returns properties.datetime if present.
func (i *Item) Datetime() (string, bool) {
	return i.stringProperty("datetime")
}

// TemporalRange returns (start_datetime, end_datetime) if both are present.
func (i *Item) TemporalRange() (start, end string, ok bool) {
	s, okS := i.stringProperty("start_datetime")
	e, okE := i.stringProperty("end_datetime")
	return s, e, okS && okE
}

func (i *Item) stringProperty(key string) (string, bool) {
	raw, ok := i.Properties[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Version returns properties.version (spec §4.2 get_version).
func (i *Item) Version() (string, bool) {
	return i.stringProperty("version")
}

func (i *Item) MarshalJSON() ([]byte, error) {
	type alias Item
	m, err := marshalWithExtra((*alias)(i), i.base.Extra)
	if err != nil {
		return nil, err
	}
	m["type"] = marshalString(string(TypeItem))
	return json.Marshal(m)
}

func (i *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	a := (*alias)(i)
	extra, err := unmarshalWithExtra(data, a, knownItemFields)
	if err != nil {
		return err
	}
	i.base.Extra = extra
	return nil
}

var knownItemFields = map[string]bool{
	"type": true, "id": true, "stac_version": true, "stac_extensions": true,
	"links": true, "geometry": true, "bbox": true, "properties": true,
	"assets": true, "collection": true,
}
