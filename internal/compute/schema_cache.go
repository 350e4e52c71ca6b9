// Package compute implements the compute evaluator spec.md §4.I
// describes: per-key chunk assembly into a reusable decoded record,
// an ordered operator pipeline (dot product, cosine similarity,
// Hadamard product, count), null-field handling via a reserved
// computationErrorMap field, and same-named-field projection for every
// other declared result field.
package compute

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jamestiotio/corestore/internal/readmodel"
)

// ErrorMapField is the reserved result-schema field name that receives
// the per-request computationErrorMap (spec.md §4.I step 5).
const ErrorMapField = "computationErrorMap"

// ResultSchema is the validated shape of a compute request's declared
// result schema: the set of field names it declares, and which of those
// are the target of an operation versus a same-named projection from
// the value record.
type ResultSchema struct {
	Fields          map[string]bool // field name -> declared
	ComputedFields  map[string]bool // field name -> is an operation's result field
}

// validate checks that every operation's result field is declared in the
// result schema and that every operation's input field name is
// non-empty, per spec.md §4.I's "Validation" note.
func validate(resultSchemaStr string, operations []readmodel.ComputeOperation) (*ResultSchema, error) {
	var fieldNames []string
	if err := json.Unmarshal([]byte(resultSchemaStr), &fieldNames); err != nil {
		return nil, fmt.Errorf("failed to parse result schema: %w", err)
	}

	declared := make(map[string]bool, len(fieldNames))
	for _, f := range fieldNames {
		declared[f] = true
	}

	computed := make(map[string]bool, len(operations))
	for _, op := range operations {
		if op.InputField == "" {
			return nil, fmt.Errorf("compute operation %s has no input field", op.Operator)
		}
		if !declared[op.ResultField] {
			return nil, fmt.Errorf("result schema does not declare operation result field %q", op.ResultField)
		}
		computed[op.ResultField] = true
	}

	return &ResultSchema{Fields: declared, ComputedFields: computed}, nil
}

// SchemaCache validates result schemas on first sight and caches them by
// the interned result-schema string (spec.md §4.I: "validated schemas
// are cached by the interned result-schema-string").
type SchemaCache struct {
	mu    sync.RWMutex
	byStr map[string]*ResultSchema
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{byStr: make(map[string]*ResultSchema)}
}

func (c *SchemaCache) Get(resultSchemaStr string, operations []readmodel.ComputeOperation) (*ResultSchema, error) {
	c.mu.RLock()
	schema, ok := c.byStr[resultSchemaStr]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	schema, err := validate(resultSchemaStr, operations)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byStr[resultSchemaStr] = schema
	c.mu.Unlock()
	return schema, nil
}
