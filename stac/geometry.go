package stac

import (
	"encoding/json"
	"fmt"
	"math"
)

// bboxFromGeometry derives a 2D bbox from a GeoJSON geometry by recursing
// into its "coordinates" array (or, for GeometryCollection, each member's
// coordinates) and tracking the min/max of every coordinate pair
// encountered. This covers Point/MultiPoint/LineString/Polygon/Multi* and
// GeometryCollection without needing a full GeoJSON dependency.
func bboxFromGeometry(geometry json.RawMessage) ([]float64, error) {
	var g struct {
		Type        string            `json:"type"`
		Coordinates json.RawMessage   `json:"coordinates"`
		Geometries  []json.RawMessage `json:"geometries"`
	}
	if err := json.Unmarshal(geometry, &g); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	seen := false

	var walk func(raw json.RawMessage) error
	walk = func(raw json.RawMessage) error {
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err == nil && len(pair) >= 2 {
			seen = true
			minX, maxX = minFloat(minX, pair[0]), maxFloat(maxX, pair[0])
			minY, maxY = minFloat(minY, pair[1]), maxFloat(maxY, pair[1])
			return nil
		}
		var nested []json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return fmt.Errorf("invalid coordinates: %w", err)
		}
		for _, n := range nested {
			if err := walk(n); err != nil {
				return err
			}
		}
		return nil
	}

	if g.Type == "GeometryCollection" {
		for _, sub := range g.Geometries {
			bbox, err := bboxFromGeometry(sub)
			if err != nil {
				return nil, err
			}
			if len(bbox) == 4 {
				seen = true
				minX, maxX = minFloat(minX, bbox[0]), maxFloat(maxX, bbox[2])
				minY, maxY = minFloat(minY, bbox[1]), maxFloat(maxY, bbox[3])
			}
		}
	} else {
		if err := walk(g.Coordinates); err != nil {
			return nil, err
		}
	}

	if !seen {
		return nil, fmt.Errorf("geometry has no coordinates")
	}
	return []float64{minX, minY, maxX, maxY}, nil
}
