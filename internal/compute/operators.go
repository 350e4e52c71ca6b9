package compute

import (
	"fmt"
	"math"

	"github.com/jamestiotio/corestore/internal/readmodel"
)

// applyOperator evaluates one operator against the input vector and the
// operation's operand, returning the scalar or vector result to install
// into the result record.
func applyOperator(op readmodel.ComputeOperation, input []float32) (any, error) {
	switch op.Operator {
	case readmodel.OperatorDotProduct:
		return dotProduct(input, op.Operand)
	case readmodel.OperatorCosineSimilarity:
		return cosineSimilarity(input, op.Operand)
	case readmodel.OperatorHadamardProduct:
		return hadamardProduct(input, op.Operand)
	case readmodel.OperatorCount:
		return float64(len(input)), nil
	default:
		return nil, fmt.Errorf("unsupported compute operator %q", op.Operator)
	}
}

func dotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dot product dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	dot, magA, magB := float64(0), float64(0), float64(0)
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB))), nil
}

func hadamardProduct(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("hadamard product dimension mismatch: %d vs %d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out, nil
}
