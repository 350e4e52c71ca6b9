package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jamestiotio/corestore/internal/chunking"
	"github.com/jamestiotio/corestore/internal/errorsx"
	"github.com/jamestiotio/corestore/internal/metadata"
	"github.com/jamestiotio/corestore/internal/objectcache"
	"github.com/jamestiotio/corestore/internal/partition"
	"github.com/jamestiotio/corestore/internal/readmodel"
	"github.com/jamestiotio/corestore/internal/schemaregistry"
	"github.com/jamestiotio/corestore/internal/storageengine"
)

// Evaluator runs the per-key compute pipeline spec.md §4.I describes.
type Evaluator struct {
	engine    storageengine.Engine
	resolver  *partition.Resolver
	metadata  metadata.Retriever
	registry  schemaregistry.Registry
	schemas   *SchemaCache
}

// NewEvaluator wires the compute pipeline's collaborators. registry may
// be nil, in which case the value schema's declared ID is trusted
// without a registry lookup.
func NewEvaluator(engine storageengine.Engine, resolver *partition.Resolver, md metadata.Retriever, registry schemaregistry.Registry, schemas *SchemaCache) *Evaluator {
	return &Evaluator{engine: engine, resolver: resolver, metadata: md, registry: registry, schemas: schemas}
}

// EvaluateKey runs steps 1-6 of spec.md §4.I for a single key, using the
// worker's own scratch for the reusable value/result records.
func (e *Evaluator) EvaluateKey(ctx context.Context, req readmodel.ComputeRequest, key []byte, keyIndex int32, userPartition int32, topic string, scratch *objectcache.WorkerScratch) readmodel.RecordResult {
	resultSchema, err := e.schemas.Get(req.ResultSchemaStr, req.Operations)
	if err != nil {
		return readmodel.RecordResult{KeyIndex: keyIndex, Err: errorsx.RequestShape(err.Error())}
	}

	subPartition := e.resolver.SubPartition(req.Resource, userPartition, key)

	chunked, err := e.metadata.IsStoreVersionChunked(topic)
	if err != nil {
		if req.Streaming {
			return readmodel.MissingKeySentinel(keyIndex)
		}
		return readmodel.RecordResult{KeyIndex: keyIndex, Err: errorsx.StorageMissing(topic)}
	}

	if e.registry != nil {
		if _, err := e.registry.GetValueSchema(req.Resource, req.ValueSchemaID); err != nil {
			return readmodel.RecordResult{KeyIndex: keyIndex, Err: errorsx.RequestShape(err.Error())}
		}
	}

	valuePrototype := scratch.ValueRecord(req.ValueSchemaID)
	adapter := chunking.DecodedRecordAdapter{Prototype: valuePrototype, Scratch: scratch.Buffer}
	value, err := chunking.Assemble[*bytes.Buffer, *objectcache.DecodedRecord](ctx, e.engine, subPartition, key, chunked, req.ValueSchemaID, adapter)
	if err != nil {
		if req.Streaming && errorsx.IsCode(err, errorsx.CodeStorageMissing) {
			return readmodel.MissingKeySentinel(keyIndex)
		}
		return readmodel.RecordResult{KeyIndex: keyIndex, Err: err}
	}

	result := scratch.ResultRecord(req.ResultSchemaStr)
	computationErrorMap := make(map[string]string)

	for _, op := range req.Operations {
		raw, present := value.Fields[op.InputField]
		if !present || raw == nil {
			computationErrorMap[op.ResultField] = fmt.Sprintf("field %q is null or absent", op.InputField)
			result.Fields[op.ResultField] = defaultResultFor(op.Operator)
			continue
		}

		input, err := toFloat32Slice(raw)
		if err != nil {
			computationErrorMap[op.ResultField] = err.Error()
			result.Fields[op.ResultField] = defaultResultFor(op.Operator)
			continue
		}

		computed, err := applyOperator(op, input)
		if err != nil {
			computationErrorMap[op.ResultField] = err.Error()
			result.Fields[op.ResultField] = defaultResultFor(op.Operator)
			continue
		}
		result.Fields[op.ResultField] = computed
	}

	for field := range resultSchema.Fields {
		if _, set := result.Fields[field]; set {
			continue
		}
		if field == ErrorMapField {
			result.Fields[field] = computationErrorMap
			continue
		}
		if resultSchema.ComputedFields[field] {
			continue // an operation targeted this field but errored without setting a default; leave null
		}
		// step 5: project the same-named field from the value record.
		result.Fields[field] = value.Fields[field]
	}

	serialized, err := json.Marshal(result.Fields)
	if err != nil {
		return readmodel.RecordResult{KeyIndex: keyIndex, Err: fmt.Errorf("failed to serialize compute result: %w", err)}
	}
	return readmodel.RecordResult{KeyIndex: keyIndex, Value: serialized}
}

func defaultResultFor(op readmodel.ComputeOperator) any {
	switch op {
	case readmodel.OperatorHadamardProduct:
		return []float32{}
	default:
		return float32(0)
	}
}

func toFloat32Slice(raw any) ([]float32, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field is not a numeric vector")
	}
	out := make([]float32, len(items))
	for i, item := range items {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("vector element %d is not numeric", i)
		}
		out[i] = float32(f)
	}
	return out, nil
}
