// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package seed

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id stamped into the generated manifest schema.
const SchemaID = "https://seminary.example.org/schemas/seed.schema.json"

// schemaCache holds the compiled schema to avoid recompilation.
var schemaCache *jschema.Schema

// GenerateSchema generates a JSON Schema from the Manifest struct.
// cmd/gen-schema writes it to schemas/seed.schema.json for editors
// and CI to pick up.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Seminary Seed Manifest"
	schema.Description = "Schema for seed manifest YAML files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema validates manifest YAML against the generated JSON
// Schema. This catches structural mistakes (wrong types, unknown or
// missing keys); Manifest.Validate covers the semantic rules.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code("SEED_MANIFEST_INVALID").Errorf("manifest data is empty")
	}

	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.Code("SEED_MANIFEST_INVALID").Wrapf(err, "invalid YAML")
	}

	// The validator wants JSON-compatible values; YAML decoding leaves
	// some native types behind in nested structures.
	jsonData := convertToJSONTypes(yamlData)

	sch, err := compiledSchema()
	if err != nil {
		return oops.Code("SEED_SCHEMA_FAILED").Wrapf(err, "compile schema")
	}

	if err := sch.Validate(jsonData); err != nil {
		return oops.Code("SEED_MANIFEST_INVALID").Wrapf(err, "schema validation failed")
	}
	return nil
}

// compiledSchema returns the cached compiled schema or compiles it.
func compiledSchema() (*jschema.Schema, error) {
	if schemaCache != nil {
		return schemaCache, nil
	}

	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("seed.schema.json", schemaData); err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrapf(err, "add schema resource")
	}

	sch, err := c.Compile("seed.schema.json")
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrapf(err, "compile schema")
	}

	schemaCache = sch
	return sch, nil
}

// convertToJSONTypes converts YAML-parsed data to JSON-compatible
// types, recursing through maps and sequences.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertToJSONTypes(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertToJSONTypes(item)
		}
		return result
	case string, int, int64, float64, bool, nil:
		return val
	default:
		// Unusual scalars (timestamps, binary) go through a JSON
		// round trip.
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}

// ResetSchemaCache clears the cached schema. Used for testing.
func ResetSchemaCache() {
	schemaCache = nil
}
