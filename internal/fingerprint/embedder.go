package fingerprint

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-matcher/internal/config"
)

// Embedder maps an image to a fixed-length embedding vector.
type Embedder interface {
	// Embed returns the embedding of a single image.
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
	// Ready verifies the model can serve requests.
	Ready(ctx context.Context) error
}

// NewEmbedder creates the embedder selected by cfg.Backend.
func NewEmbedder(cfg *config.ModelConfig) (Embedder, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Backend {
	case config.BackendTFServing, "":
		c := NewTFServingClient(cfg.URL, cfg.Name, cfg.InputSize)
		c.client = httpClient
		return c, nil
	case config.BackendFace, config.BackendImage:
		c := NewEmbeddingClient(cfg.URL, cfg.Backend)
		c.client = httpClient
		return c, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
