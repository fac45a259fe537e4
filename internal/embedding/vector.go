package embedding

import (
	"encoding/json"
	"fmt"
	"math"
)

// SentinelScore is substituted when a similarity cannot be computed. It is
// the lowest value cosine can produce, so rows without a usable vector sink
// to the bottom of semantic results instead of aborting the request.
const SentinelScore = -1.0

// Cosine computes the cosine similarity between two vectors, in [-1, 1].
// Degenerate input (nil, empty, mismatched lengths, zero magnitude) returns
// SentinelScore rather than an error.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return SentinelScore
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return SentinelScore
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EncodeVector serializes a vector for storage as TEXT. JSON keeps the stored
// form portable across providers and readable when debugging.
func EncodeVector(vector []float64) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to encode vector: %w", err)
	}
	return string(data), nil
}

// DecodeVector deserializes a stored vector. Callers treat a decode failure
// as a missing vector (sentinel score), never as a request-level error.
func DecodeVector(raw string) ([]float64, error) {
	var vector []float64
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vector, nil
}
