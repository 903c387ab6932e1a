package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentListSchema describes the shape the client relies on. Record
// contents stay free-form; only their container types are checked.
func documentListSchema() map[string]any {
	record := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"items": map[string]any{
				"type":  []any{"array", "null"},
				"items": map[string]any{"type": []any{"object", "null"}},
			},
		},
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []any{"id", "filename"},
			"properties": map[string]any{
				"id":             map[string]any{"type": []any{"integer", "string"}},
				"filename":       map[string]any{"type": "string", "minLength": 1},
				"upload_time":    map[string]any{"type": []any{"string", "null"}},
				"extracted_data": record,
				"edited_data":    record,
			},
		},
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func documentListValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(documentListSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("documents.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("documents.json")
	})
	return compiledSchema, compileErr
}

// ValidateDocumentList checks a GET /documents payload against the expected shape.
func ValidateDocumentList(data []byte) error {
	schema, err := documentListValidator()
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
