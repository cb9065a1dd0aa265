package stac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Embedded, minimal core STAC JSON Schemas: just enough structural
// validation (required fields, types) to catch malformed documents before
// they enter the tree, per spec §4.2 "validate against the STAC schema".
// This module does not vendor the full STAC specification schema suite;
// see DESIGN.md for why a trimmed, hand-maintained schema was chosen over
// shipping the upstream schema bundle.
const (
	itemSchemaSrc = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "id", "stac_version", "links", "properties", "assets"],
		"properties": {
			"type": {"const": "Feature"},
			"id": {"type": "string", "minLength": 1},
			"stac_version": {"type": "string"},
			"links": {"type": "array"},
			"properties": {"type": "object"},
			"assets": {"type": "object"}
		}
	}`

	collectionSchemaSrc = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "id", "stac_version", "description", "license", "extent", "links"],
		"properties": {
			"type": {"const": "Collection"},
			"id": {"type": "string", "minLength": 1},
			"stac_version": {"type": "string"},
			"description": {"type": "string"},
			"license": {"type": "string"},
			"extent": {
				"type": "object",
				"required": ["spatial", "temporal"],
				"properties": {
					"spatial": {"type": "object", "required": ["bbox"]},
					"temporal": {"type": "object", "required": ["interval"]}
				}
			},
			"links": {"type": "array"}
		}
	}`

	catalogSchemaSrc = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["type", "id", "stac_version", "description", "links"],
		"properties": {
			"type": {"const": "Catalog"},
			"id": {"type": "string", "minLength": 1},
			"stac_version": {"type": "string"},
			"description": {"type": "string"},
			"links": {"type": "array"}
		}
	}`
)

var (
	schemaOnce sync.Once
	schemas    map[Type]*jsonschema.Schema
)

func compiledSchemas() map[Type]*jsonschema.Schema {
	schemaOnce.Do(func() {
		schemas = map[Type]*jsonschema.Schema{}
		sources := map[Type]string{
			TypeItem:       itemSchemaSrc,
			TypeCollection: collectionSchemaSrc,
			TypeCatalog:    catalogSchemaSrc,
		}
		for t, src := range sources {
			c := jsonschema.NewCompiler()
			name := string(t) + ".json"
			if err := c.AddResource(name, bytes.NewReader([]byte(src))); err != nil {
				panic(fmt.Sprintf("stac: invalid embedded schema %s: %v", name, err))
			}
			schema, err := c.Compile(name)
			if err != nil {
				panic(fmt.Sprintf("stac: cannot compile embedded schema %s: %v", name, err))
			}
			schemas[t] = schema
		}
	})
	return schemas
}

// Validate checks data (the raw JSON document) against the schema for t.
func Validate(t Type, data []byte) error {
	schema, ok := compiledSchemas()[t]
	if !ok {
		return fmt.Errorf("no schema registered for type %q", t)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
