package catalog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// setSchema describes a catalog set file.
var setSchema = map[string]any{
	"type":     "object",
	"required": []any{"categories"},
	"properties": map[string]any{
		"categories": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"name", "problems"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "minLength": 1},
					"problems": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"slug", "title"},
							"properties": map[string]any{
								"slug":       map[string]any{"type": "string", "minLength": 1},
								"title":      map[string]any{"type": "string"},
								"difficulty": map[string]any{"type": "string"},
								"id":         map[string]any{"type": "integer"},
							},
						},
					},
				},
			},
		},
	},
}

// aliasSchema describes the alias table file: a flat string-to-string map.
var aliasSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type":      "string",
		"minLength": 1,
	},
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		defs := map[string]map[string]any{
			"set":     setSchema,
			"aliases": aliasSchema,
		}
		for name, def := range defs {
			// The compiler wants a parsed JSON value, so round-trip the Go map.
			b, err := json.Marshal(def)
			if err != nil {
				compileErr = fmt.Errorf("marshal %s schema: %w", name, err)
				return
			}
			var parsed any
			if err := json.Unmarshal(b, &parsed); err != nil {
				compileErr = fmt.Errorf("parse %s schema: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), parsed); err != nil {
				compileErr = fmt.Errorf("add %s schema: %w", name, err)
				return
			}
		}
		compiled = make(map[string]*jsonschema.Schema, len(defs))
		for name := range defs {
			sch, err := c.Compile(schemaURL(name))
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			compiled[name] = sch
		}
	})
	return compiled, compileErr
}

func schemaURL(name string) string {
	return fmt.Sprintf("schema://leetbuddy/%s.json", name)
}

// validate checks raw JSON against the named schema.
func validate(name string, raw []byte) error {
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schemas[name].Validate(parsed); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", name, err)
	}
	return nil
}
