package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

func newTestJob(t *testing.T, stores *Stores, sourceIds ...string) *core.IngestionJob {
	t.Helper()

	placeholders := make([]*core.Document, 0, len(sourceIds))
	for _, sourceId := range sourceIds {
		placeholders = append(placeholders, &core.Document{SourceId: sourceId})
	}

	job, err := stores.Jobs.CreateJob(context.Background(), &core.IngestionJob{FolderRef: "folder"}, placeholders)
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	return job
}

func TestCreateJobWritesPlaceholders(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	job := newTestJob(t, stores, "f/a.txt", "f/b.txt", "f/c.txt")

	if job.Id == 0 {
		t.Fatal("Expected non-zero job ID")
	}
	if job.Status != core.JobPending {
		t.Fatalf("Expected pending, got %s", job.Status)
	}
	if job.TotalItems != 3 {
		t.Fatalf("Expected 3 total items, got %d", job.TotalItems)
	}

	docs, err := stores.Documents.GetDocumentsByJob(ctx, job.Id)
	if err != nil {
		t.Fatalf("Failed to list job documents: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 placeholders, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Status != core.DocumentPending {
			t.Fatalf("Expected pending placeholder, got %s", doc.Status)
		}
		if doc.JobId != job.Id {
			t.Fatalf("Expected JobId %d, got %d", job.Id, doc.JobId)
		}
	}
}

func TestCreateJobRejectsEmptyItems(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	_, err = stores.Jobs.CreateJob(context.Background(), &core.IngestionJob{FolderRef: "folder"}, nil)
	if !core.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestRecordOutcomeAggregation(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	job := newTestJob(t, stores, "f/a.txt", "f/b.txt", "f/c.txt")

	// First outcome moves the job to running
	updated, err := stores.Jobs.RecordOutcome(ctx, job.Id, true)
	if err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}
	if updated.Status != core.JobRunning {
		t.Fatalf("Expected running, got %s", updated.Status)
	}

	if _, err := stores.Jobs.RecordOutcome(ctx, job.Id, false); err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}

	// Last outcome resolves the job: one success is enough to complete
	final, err := stores.Jobs.RecordOutcome(ctx, job.Id, false)
	if err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}
	if final.Status != core.JobCompleted {
		t.Fatalf("Expected completed, got %s", final.Status)
	}
	if final.ProcessedItems != 1 || final.FailedItems != 2 {
		t.Fatalf("Expected 1/2 processed/failed, got %d/%d", final.ProcessedItems, final.FailedItems)
	}
	if final.ProcessedItems+final.FailedItems != final.TotalItems {
		t.Fatal("Expected counters to sum to total items")
	}
	if final.CompletedAt.IsZero() {
		t.Fatal("Expected CompletedAt to be set")
	}
}

func TestRecordOutcomeAllFailed(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	job := newTestJob(t, stores, "f/a.txt", "f/b.txt")

	if _, err := stores.Jobs.RecordOutcome(ctx, job.Id, false); err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}
	final, err := stores.Jobs.RecordOutcome(ctx, job.Id, false)
	if err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}
	if final.Status != core.JobFailed {
		t.Fatalf("Expected failed, got %s", final.Status)
	}
	if final.Error == "" {
		t.Fatal("Expected job error to be set")
	}
}

func TestRecordOutcomeAfterTerminal(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	job := newTestJob(t, stores, "f/a.txt")

	if _, err := stores.Jobs.RecordOutcome(ctx, job.Id, true); err != nil {
		t.Fatalf("Failed to record outcome: %v", err)
	}

	// A late redelivered outcome must not disturb the terminal counters
	_, err = stores.Jobs.RecordOutcome(ctx, job.Id, true)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	stored, err := stores.Jobs.GetJob(ctx, job.Id)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if stored.ProcessedItems != 1 {
		t.Fatalf("Expected counters unchanged, got %d processed", stored.ProcessedItems)
	}
}

func TestTransitionJob(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	job := newTestJob(t, stores, "f/a.txt")

	failed, err := stores.Jobs.TransitionJob(ctx, job.Id, core.JobPending, core.JobFailed, "source unreachable")
	if err != nil {
		t.Fatalf("Failed to transition job: %v", err)
	}
	if failed.Error != "source unreachable" {
		t.Fatalf("Expected error message, got '%s'", failed.Error)
	}
	if failed.CompletedAt.IsZero() {
		t.Fatal("Expected CompletedAt on terminal transition")
	}

	_, err = stores.Jobs.TransitionJob(ctx, job.Id, core.JobPending, core.JobRunning, "")
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
}

func TestRecentJobs(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	first := newTestJob(t, stores, "f/a.txt")
	second := newTestJob(t, stores, "f/b.txt")
	third := newTestJob(t, stores, "f/c.txt")

	recent, err := stores.Jobs.RecentJobs(context.Background(), 2)
	if err != nil {
		t.Fatalf("Failed to list recent jobs: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(recent))
	}
	if recent[0].Id != third.Id || recent[1].Id != second.Id {
		t.Fatalf("Expected newest first, got %d then %d (first was %d)", recent[0].Id, recent[1].Id, first.Id)
	}
}
