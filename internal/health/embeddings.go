package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// EmbeddingsChecker implements health checking for the embedding sidecar.
type EmbeddingsChecker struct {
	url    string
	client *http.Client
}

// NewEmbeddingsChecker creates a health checker for the embedding sidecar.
// The url should be the sidecar's base URL (e.g., "http://localhost:8091").
func NewEmbeddingsChecker(url string) *EmbeddingsChecker {
	return &EmbeddingsChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck verifies the embedding sidecar is reachable. The sidecar has no
// dedicated health endpoint, so any 2xx response from its base URL counts.
func (e *EmbeddingsChecker) HealthCheck(ctx context.Context) error {
	if e.url == "" {
		return fmt.Errorf("embeddings endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach embedding sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("embedding sidecar unhealthy: unexpected status code %d", resp.StatusCode)
	}

	return nil
}
