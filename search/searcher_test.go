package search

import (
	"context"
	"testing"

	aimock "github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSimilar(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	_, err = stores.Documents.PutDocuments(ctx,
		&core.Document{SourceId: "f/hit.txt", Status: core.DocumentCompleted, Vector: []float32{1, 0, 0}},
		&core.Document{SourceId: "f/miss.txt", Status: core.DocumentCompleted, Vector: []float32{0, 1, 0}},
		&core.Document{SourceId: "f/unfinished.txt", Status: core.DocumentPending, Vector: []float32{1, 0, 0}},
	)
	require.NoError(t, err)

	embedder := aimock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(fctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	searcher, err := NewSearcher(stores.Documents, embedder)
	require.NoError(t, err)

	matches, err := searcher.FindSimilar(ctx, "query", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "f/hit.txt", matches[0].Document.SourceId)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 0.01)
}

func TestNewSearcherValidation(t *testing.T) {
	_, err := NewSearcher(nil, aimock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrSearcherRequired)

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	_, err = NewSearcher(stores.Documents, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
