package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map describing the serialized Receipt. The parse stage
// validates every record against it before persisting; it guards our
// own serializer, it is not an accept/reject gate on extraction.
func BuildReceiptJSONSchema() map[string]any {
	amount := map[string]any{"type": "number"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"merchant": map[string]any{"type": "string", "minLength": 1},
			"date":     map[string]any{"type": "string", "minLength": 1},
			"total":    amount,
			"tax":      amount,
			"subtotal": amount,
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"name":  map[string]any{"type": "string", "minLength": 1},
						"price": amount,
					},
					"required": []string{"name"},
				},
			},
			"raw_text": map[string]any{"type": "string"},
		},
		"required": []string{"items", "raw_text"},
	}
}

// ValidateJSON validates data against schemaMap.
func ValidateJSON(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
