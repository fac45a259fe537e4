package embedding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LocalDimension is the output dimension of the default local model
// (all-MiniLM-L6-v2).
const LocalDimension = 384

// DefaultLocalModel is the model requested from the embedding server when no
// model is configured.
const DefaultLocalModel = "all-MiniLM-L6-v2"

// defaultRequestTimeout bounds a single embedding call.
const defaultRequestTimeout = 10 * time.Second

// ErrMissingEndpoint is returned when the local provider is selected without
// an embedding server endpoint.
var ErrMissingEndpoint = errors.New("embeddings endpoint is required for local provider")

// LocalProvider generates real neural embeddings by calling a local
// sentence-transformers embedding server over HTTP. The client is constructed
// once at startup; individual calls are cheap.
type LocalProvider struct {
	endpoint string
	model    string
	dim      int
	client   *http.Client
}

// NewLocalProvider creates a provider backed by the embedding server at
// endpoint. The endpoint must be non-empty; this is validated at construction
// so misconfiguration fails at startup rather than on first use.
func NewLocalProvider(endpoint, model string) (*LocalProvider, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalProvider{
		endpoint: endpoint,
		model:    model,
		dim:      LocalDimension,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// Dimension returns the fixed output vector length.
func (p *LocalProvider) Dimension() int {
	return p.dim
}

// embedRequest is the wire format sent to the embedding server.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the wire format returned by the embedding server.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed converts text into a vector by calling the embedding server.
// Empty or whitespace-only text yields the all-zero vector without a network
// round trip.
func (p *LocalProvider) Embed(text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float64, p.dim), nil
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	resp, err := p.client.Post(p.endpoint+"/embed", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding server request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Embedding) != p.dim {
		return nil, fmt.Errorf("embedding server returned %d dimensions, expected %d",
			len(parsed.Embedding), p.dim)
	}

	return parsed.Embedding, nil
}
