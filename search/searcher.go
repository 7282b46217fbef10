// Package search answers free-text queries over completed documents by
// embedding the query and ranking stored vectors by cosine similarity.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DefaultMinSimilarity filters matches below this cosine similarity.
const DefaultMinSimilarity = 0.60

var (
	// ErrSearcherRequired is returned when a vector searcher is not provided.
	ErrSearcherRequired = errors.New("vector searcher required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Searcher provides semantic search over completed documents.
type Searcher struct {
	store         storage.VectorSearcher
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity floor for matches.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorSearcher, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrSearcherRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:         store,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for documents similar to the query.
// Returns up to maxHits results, ranked by similarity score. Only
// completed documents with persisted vectors can match.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SimilarityMatch, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.store.FindSimilar(ctx, ai.NormalizeVector(embedding), s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar documents", "err", err)
		return nil, err
	}

	return matches, nil
}
