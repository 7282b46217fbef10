package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docpipe/core"
)

func TestFindSimilar(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	docs := []*core.Document{
		{SourceId: "f/close.txt", Status: core.DocumentCompleted, Vector: []float32{1.0, 0.0, 0.0}},
		{SourceId: "f/near.txt", Status: core.DocumentCompleted, Vector: []float32{0.9, 0.1, 0.0}},
		{SourceId: "f/far.txt", Status: core.DocumentCompleted, Vector: []float32{0.0, 1.0, 0.0}},
		// Pending and vector-less rows are never searchable
		{SourceId: "f/pending.txt", Status: core.DocumentPending, Vector: []float32{1.0, 0.0, 0.0}},
		{SourceId: "f/novec.txt", Status: core.DocumentCompleted},
	}
	if _, err := stores.Documents.PutDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to put documents: %v", err)
	}

	results, err := stores.Backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.5, 10)
	if err != nil {
		t.Fatalf("Failed to find similar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(results))
	}
	if results[0].Document.SourceId != "f/close.txt" {
		t.Fatalf("Expected closest match first, got %s", results[0].Document.SourceId)
	}
	for i := 0; i < len(results)-1; i++ {
		if results[i].Score < results[i+1].Score {
			t.Fatal("Results should be sorted by score descending")
		}
	}

	limited, err := stores.Backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.5, 1)
	if err != nil {
		t.Fatalf("Failed to find similar: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Expected 1 match with limit, got %d", len(limited))
	}
}
