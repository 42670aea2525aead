package database

import (
	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical direction).
// Zero vectors have similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, dimensionError(len(a), len(b))
	}
	va, vb := toFloat64(a), toFloat64(b)
	return cosine(va, floats.Norm(va, 2), vb, floats.Norm(vb, 2)), nil
}

// CosineSimilarity64 is CosineSimilarity for vectors with precomputed L2 norms.
func CosineSimilarity64(a []float64, normA float64, b []float64, normB float64) (float64, error) {
	if len(a) != len(b) {
		return 0, dimensionError(len(a), len(b))
	}
	return cosine(a, normA, b, normB), nil
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	similarity, err := CosineSimilarity(a, b)
	if err != nil {
		return 2.0 // Maximum distance for invalid input
	}
	return 1 - similarity
}

func cosine(a []float64, normA float64, b []float64, normB float64) float64 {
	if len(a) == 0 || normA == 0 || normB == 0 {
		return 0
	}

	similarity := floats.Dot(a, b) / (normA * normB)
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
