package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

func TestDocumentBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	doc := &core.Document{
		SourceId: "folder/report.pdf",
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Status:   core.DocumentPending,
		Size:     2048,
	}

	added, err := stores.Documents.PutDocuments(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}
	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added[0].InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	retrieved, err := stores.Documents.GetDocument(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Name != "report.pdf" {
		t.Fatalf("Expected 'report.pdf', got '%s'", retrieved.Name)
	}

	// Same source ref must resolve to the same row
	bySource, err := stores.Documents.GetDocumentBySource(ctx, "folder/report.pdf")
	if err != nil {
		t.Fatalf("Failed to get document by source: %v", err)
	}
	if bySource.Id != added[0].Id {
		t.Fatalf("Expected ID %d, got %d", added[0].Id, bySource.Id)
	}
}

func TestDocumentNotFound(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	_, err = stores.Documents.GetDocument(context.Background(), 12345)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDocumentIdentityAcrossJobs(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	doc := &core.Document{
		SourceId: "folder/a.txt",
		Name:     "a.txt",
		Status:   core.DocumentPending,
		JobId:    7,
	}
	added, err := stores.Documents.PutDocuments(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}
	firstInserted := added[0].InsertedAt

	// Rewriting the same source item must keep identity and creation time
	rewrite := &core.Document{
		SourceId: "folder/a.txt",
		Name:     "a.txt",
		Status:   core.DocumentPending,
		JobId:    8,
	}
	again, err := stores.Documents.PutDocuments(ctx, rewrite)
	if err != nil {
		t.Fatalf("Failed to rewrite document: %v", err)
	}
	if again[0].Id != added[0].Id {
		t.Fatalf("Expected stable ID %d, got %d", added[0].Id, again[0].Id)
	}
	if !again[0].InsertedAt.Equal(firstInserted) {
		t.Fatal("Expected InsertedAt to be preserved on rewrite")
	}

	// The job index must follow the row to its new owner
	oldJobDocs, err := stores.Documents.GetDocumentsByJob(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to list old job documents: %v", err)
	}
	if len(oldJobDocs) != 0 {
		t.Fatalf("Expected old job index to be empty, got %d entries", len(oldJobDocs))
	}
	newJobDocs, err := stores.Documents.GetDocumentsByJob(ctx, 8)
	if err != nil {
		t.Fatalf("Failed to list new job documents: %v", err)
	}
	if len(newJobDocs) != 1 {
		t.Fatalf("Expected 1 document in new job, got %d", len(newJobDocs))
	}
}

func TestDocumentTransition(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	doc := &core.Document{
		SourceId: "folder/b.txt",
		Status:   core.DocumentPending,
	}
	added, err := stores.Documents.PutDocuments(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	claimed, err := stores.Documents.Transition(ctx, added[0].Id, core.DocumentPending, core.DocumentProcessing, nil)
	if err != nil {
		t.Fatalf("Failed to claim document: %v", err)
	}
	if claimed.Status != core.DocumentProcessing {
		t.Fatalf("Expected processing, got %s", claimed.Status)
	}

	// A second claim with a stale expectation must fail
	_, err = stores.Documents.Transition(ctx, added[0].Id, core.DocumentPending, core.DocumentProcessing, nil)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// Completion applies the mutation in the same transaction
	done, err := stores.Documents.Transition(ctx, added[0].Id, core.DocumentProcessing, core.DocumentCompleted, func(d *core.Document) {
		d.Vector = []float32{0.1, 0.2}
		d.Snippet = "hello"
		d.ContentLength = 5
	})
	if err != nil {
		t.Fatalf("Failed to complete document: %v", err)
	}
	if len(done.Vector) != 2 || done.Snippet != "hello" {
		t.Fatal("Expected mutation to be applied")
	}
}

func TestDocumentClaimRace(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	doc := &core.Document{
		SourceId: "folder/contested.txt",
		Status:   core.DocumentPending,
	}
	added, err := stores.Documents.PutDocuments(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	const claimants = 8
	var wg sync.WaitGroup
	results := make([]error, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := stores.Documents.Transition(ctx, added[0].Id, core.DocumentPending, core.DocumentProcessing, nil)
			results[slot] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		if res == nil {
			winners++
		} else if !errors.Is(res, storage.ErrConflict) {
			t.Fatalf("Expected ErrConflict for losers, got %v", res)
		}
	}
	if winners != 1 {
		t.Fatalf("Expected exactly 1 winner, got %d", winners)
	}
}

func TestGetDocumentsByStatus(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	docs := []*core.Document{
		{SourceId: "f/1.txt", Status: core.DocumentPending},
		{SourceId: "f/2.txt", Status: core.DocumentPending},
		{SourceId: "f/3.txt", Status: core.DocumentFailed},
	}
	if _, err := stores.Documents.PutDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to put documents: %v", err)
	}

	pending, err := stores.Documents.GetDocumentsByStatus(ctx, core.DocumentPending, 0)
	if err != nil {
		t.Fatalf("Failed to list pending documents: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending documents, got %d", len(pending))
	}

	limited, err := stores.Documents.GetDocumentsByStatus(ctx, core.DocumentPending, 1)
	if err != nil {
		t.Fatalf("Failed to list pending documents: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Expected 1 document with limit, got %d", len(limited))
	}
}
