// Package embedding provides text embedding generation and storage for
// commerce semantic search. The provider seam is the only dynamic dispatch
// point: callers never know which engine produced a vector.
package embedding

import (
	"errors"
	"fmt"
	"strings"
)

// Supported provider identifiers. The set is closed: anything else is a
// configuration error at startup, never a per-request fallback.
const (
	ProviderSimulated = "simulated"
	ProviderLocal     = "local"
)

// ErrUnsupportedProvider is returned by NewProvider for identifiers outside
// the supported set.
var ErrUnsupportedProvider = errors.New("unsupported embeddings provider")

// Provider generates a fixed-dimension vector for a text.
// Implementations must be deterministic for a given text and must return the
// all-zero vector of their dimension for empty/whitespace-only input.
type Provider interface {
	// Embed converts text into a vector of length Dimension().
	Embed(text string) ([]float64, error)

	// Dimension returns the fixed output vector length.
	Dimension() int
}

// ProviderConfig holds the settings needed to construct a provider.
type ProviderConfig struct {
	// Name selects the implementation: ProviderSimulated or ProviderLocal.
	Name string

	// Endpoint is the embedding server base URL. Required for ProviderLocal.
	Endpoint string

	// Model is the model identifier sent to the embedding server.
	Model string
}

// NewProvider constructs the configured provider. Heavyweight initialization
// (HTTP client, model warm-up) happens here, once, at startup.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = ProviderSimulated
	}

	switch name {
	case ProviderSimulated:
		return NewSimulatedProvider(SimulatedDimension), nil
	case ProviderLocal:
		return NewLocalProvider(cfg.Endpoint, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrUnsupportedProvider, cfg.Name, ProviderSimulated, ProviderLocal)
	}
}
