// Package mock provides test doubles for the ai interfaces with
// deterministic default behavior and function-field injection.
package mock

import "github.com/poiesic/docpipe/ai"

// Provider implements ai.Provider backed by mock services.
type Provider struct {
	embedder *MockEmbedder
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider with a default mock embedder.
func NewProvider() *Provider {
	return &Provider{embedder: NewMockEmbedder()}
}

// Embedder returns the mock embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// MockEmbedder returns the concrete mock for test assertions.
func (p *Provider) MockEmbedder() *MockEmbedder {
	return p.embedder
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
