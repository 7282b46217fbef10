// Package openai implements the ai interfaces over any OpenAI-compatible
// embedding API via langchaingo.
package openai

import (
	"github.com/poiesic/docpipe/ai"
)

// Provider implements ai.Provider for OpenAI-compatible services.
type Provider struct {
	embedder *Embedder
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider from the given configuration.
func NewProvider(config *ai.Config) (*Provider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{embedder: embedder}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases resources held by the provider.
// The underlying HTTP client holds no persistent connections worth tracking.
func (p *Provider) Close() error {
	return nil
}
