// Package embedding produces fixed-dimension vectors for question text.
// Template retrieval depends on every stored vector sharing one
// dimensionality, so providers validate their output before returning it.
package embedding

import (
	"context"
	"fmt"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/llm"
)

// Provider converts text into an embedding vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewProvider builds the provider named in the configuration.
func NewProvider(cfg config.EmbeddingConfig, svc llm.Service) (Provider, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalProvider(cfg.Dimensions), nil
	case "remote":
		if svc == nil {
			return nil, fmt.Errorf("remote embedding provider requires an LLM service")
		}

		return &remoteProvider{svc: svc, dims: cfg.Dimensions}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// remoteProvider delegates to the configured LLM provider's embedding
// endpoint and enforces the expected dimensionality.
type remoteProvider struct {
	svc  llm.Service
	dims int
}

func (p *remoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.svc.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(vec) != p.dims {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), p.dims)
	}

	return vec, nil
}

func (p *remoteProvider) Dimensions() int {
	return p.dims
}
