package embedding

import (
	"crypto/sha256"
	"strings"
)

// SimulatedDimension is the output dimension of the simulated provider.
const SimulatedDimension = 128

// SimulatedProvider generates deterministic vectors by hashing the input
// text. It carries no semantic meaning, but it exercises the full persistence
// and similarity pipeline without any external dependency, and its output is
// stable byte-for-byte across processes.
type SimulatedProvider struct {
	dim int
}

// NewSimulatedProvider creates a simulated provider with the given dimension.
// A dimension <= 0 falls back to SimulatedDimension.
func NewSimulatedProvider(dim int) *SimulatedProvider {
	if dim <= 0 {
		dim = SimulatedDimension
	}
	return &SimulatedProvider{dim: dim}
}

// Dimension returns the fixed output vector length.
func (p *SimulatedProvider) Dimension() int {
	return p.dim
}

// Embed converts text into a deterministic vector of values in [0, 1).
// Empty or whitespace-only text yields the all-zero vector.
func (p *SimulatedProvider) Embed(text string) ([]float64, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	vector := make([]float64, p.dim)
	if normalized == "" {
		return vector, nil
	}

	// Stable digest expanded by cyclic byte reuse until the vector is full.
	digest := sha256.Sum256([]byte(normalized))
	for i := 0; i < p.dim; i++ {
		vector[i] = float64(digest[i%len(digest)]) / 255.0
	}

	return vector, nil
}
