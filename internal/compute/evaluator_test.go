package compute

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/metadata"
	"github.com/jamestiotio/corestore/internal/objectcache"
	"github.com/jamestiotio/corestore/internal/partition"
	"github.com/jamestiotio/corestore/internal/readmodel"
	"github.com/jamestiotio/corestore/internal/storageengine"
)

func setup(t *testing.T) (*Evaluator, *storageengine.MemoryEngine, *metadata.InMemoryRetriever) {
	t.Helper()
	engine := storageengine.NewMemoryEngine()
	resolver := partition.New(nil)
	md := metadata.NewInMemoryRetriever()
	md.SetVersionMetadata("store_v1", metadata.VersionMetadata{Chunked: false})
	evaluator := NewEvaluator(engine, resolver, md, nil, NewSchemaCache())
	return evaluator, engine, md
}

// TestEvaluator_DotProductAndProjection implements spec.md §8 testable
// property 8: a declared result field that is not the target of any
// operation and not the reserved error-map field equals the same-named
// field of the value record.
func TestEvaluator_DotProductAndProjection(t *testing.T) {
	evaluator, engine, _ := setup(t)

	value := map[string]any{"f": []any{1.0, 2.0, 3.0}, "label": "vec-a"}
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	engine.Put(0, []byte("k1"), raw)

	req := readmodel.ComputeRequest{
		Resource:        "store",
		ValueSchemaID:   1,
		ResultSchemaStr: `["score","label","computationErrorMap"]`,
		Operations: []readmodel.ComputeOperation{
			{Operator: readmodel.OperatorDotProduct, InputField: "f", ResultField: "score", Operand: []float32{1, 1, 1}},
		},
	}

	result := evaluator.EvaluateKey(context.Background(), req, []byte("k1"), 0, 0, "store_v1", objectcache.NewWorkerScratch())
	require.NoError(t, result.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(result.Value, &out))
	assert.InDelta(t, 6.0, out["score"], 0.0001)
	assert.Equal(t, "vec-a", out["label"])
	assert.Empty(t, out["computationErrorMap"])
}

func TestEvaluator_NullFieldRecordsComputationError(t *testing.T) {
	evaluator, engine, _ := setup(t)

	value := map[string]any{"f": nil, "label": "vec-b"}
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	engine.Put(0, []byte("k2"), raw)

	req := readmodel.ComputeRequest{
		Resource:        "store",
		ValueSchemaID:   1,
		ResultSchemaStr: `["score","label","computationErrorMap"]`,
		Operations: []readmodel.ComputeOperation{
			{Operator: readmodel.OperatorDotProduct, InputField: "f", ResultField: "score", Operand: []float32{1, 1, 1}},
		},
	}

	result := evaluator.EvaluateKey(context.Background(), req, []byte("k2"), 0, 0, "store_v1", objectcache.NewWorkerScratch())
	require.NoError(t, result.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(result.Value, &out))
	errMap, ok := out["computationErrorMap"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errMap, "score")
}

func TestEvaluator_StreamingMissingKeyReturnsSentinel(t *testing.T) {
	evaluator, _, _ := setup(t)

	req := readmodel.ComputeRequest{
		Resource:        "store",
		ValueSchemaID:   1,
		ResultSchemaStr: `["score"]`,
		Streaming:       true,
		Operations: []readmodel.ComputeOperation{
			{Operator: readmodel.OperatorCount, InputField: "f", ResultField: "score"},
		},
	}

	result := evaluator.EvaluateKey(context.Background(), req, []byte("missing"), 5, 0, "store_v1", objectcache.NewWorkerScratch())
	assert.Equal(t, int32(-5), result.KeyIndex)
	assert.Nil(t, result.Value)
	assert.NoError(t, result.Err)
}
