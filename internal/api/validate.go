package api

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request body schemas. Requirements must be a flat object of scalars; the
// engine interprets the fields.
const (
	definitions = `{
  "requirements": {
    "type": "object",
    "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
  },
  "event": {
    "type": "object",
    "properties": {
      "attempt_id":    {"type": "string"},
      "exercise_type": {"type": "string"},
      "correct":       {"type": "boolean"},
      "duration_ms":   {"type": "integer", "minimum": 0},
      "at":            {"type": "string"}
    }
  }
}`

	checkSchema = `{
  "type": "object",
  "required": ["user_id", "requirements"],
  "properties": {
    "user_id":      {"type": "string", "minLength": 1},
    "requirements": {"$ref": "#/$defs/requirements"},
    "event":        {"$ref": "#/$defs/event"},
    "use_cache":    {"type": "boolean"}
  },
  "$defs": ` + definitions + `
}`

	progressSchema = `{
  "type": "object",
  "required": ["user_id", "requirements"],
  "properties": {
    "user_id":      {"type": "string", "minLength": 1},
    "requirements": {"$ref": "#/$defs/requirements"},
    "use_cache":    {"type": "boolean"}
  },
  "$defs": ` + definitions + `
}`

	evaluateSchema = `{
  "type": "object",
  "properties": {
    "event": {"$ref": "#/$defs/event"}
  },
  "$defs": ` + definitions + `
}`
)

var (
	checkValidator    = mustCompile("check", checkSchema)
	progressValidator = mustCompile("progress", progressSchema)
	evaluateValidator = mustCompile("evaluate", evaluateSchema)
)

func mustCompile(name, src string) *jsonschema.Schema {
	s, err := compileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://mathquest/%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return compiled, nil
}

// validateBody checks raw JSON against schema before it is decoded.
func validateBody(schema *jsonschema.Schema, raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
