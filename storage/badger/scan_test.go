package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

func TestCreateSessionClaimsFolderSlot(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.Id == 0 {
		t.Fatal("Expected non-zero session ID")
	}
	if session.Status != core.ScanPending {
		t.Fatalf("Expected pending, got %s", session.Status)
	}

	// Second session for the same folder must be rejected
	_, err = stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
	})
	if !errors.Is(err, storage.ErrSessionActive) {
		t.Fatalf("Expected ErrSessionActive, got %v", err)
	}

	// A different folder is unaffected
	_, err = stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "other",
		Mode:      core.ScanFull,
	})
	if err != nil {
		t.Fatalf("Failed to create session for other folder: %v", err)
	}

	active, err := stores.Scans.ActiveSession(ctx, "folder")
	if err != nil {
		t.Fatalf("Failed to get active session: %v", err)
	}
	if active.Id != session.Id {
		t.Fatalf("Expected active session %d, got %d", session.Id, active.Id)
	}
}

func TestTerminalSessionReleasesSlot(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	done, err := stores.Scans.TransitionSession(ctx, session.Id, core.ScanRunning, core.ScanCompleted, "")
	if err != nil {
		t.Fatalf("Failed to complete session: %v", err)
	}
	if done.CompletedAt.IsZero() {
		t.Fatal("Expected CompletedAt on terminal transition")
	}

	_, err = stores.Scans.ActiveSession(ctx, "folder")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after completion, got %v", err)
	}

	// The slot is free for the next scan
	_, err = stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
	})
	if err != nil {
		t.Fatalf("Failed to create follow-up session: %v", err)
	}
}

func TestPausedSessionHoldsSlot(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if _, err := stores.Scans.TransitionSession(ctx, session.Id, core.ScanRunning, core.ScanPaused, ""); err != nil {
		t.Fatalf("Failed to pause session: %v", err)
	}

	// Paused is not terminal, so the folder stays busy
	_, err = stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
	})
	if !errors.Is(err, storage.ErrSessionActive) {
		t.Fatalf("Expected ErrSessionActive while paused, got %v", err)
	}

	active, err := stores.Scans.ActiveSession(ctx, "folder")
	if err != nil {
		t.Fatalf("Failed to get active session: %v", err)
	}
	if active.Status != core.ScanPaused {
		t.Fatalf("Expected paused, got %s", active.Status)
	}
}

func TestTransitionSessionConflict(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanFull,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	_, err = stores.Scans.TransitionSession(ctx, session.Id, core.ScanRunning, core.ScanPaused, "")
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
}

func TestUpdateSessionCounters(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	updated, err := stores.Scans.UpdateSession(ctx, session.Id, func(s *core.ScanSession) error {
		s.TotalItems = 10
		s.ScannedItems = 4
		s.NewItems = 2
		s.ChangedItems = 1
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}
	if updated.ScannedItems != 4 || updated.NewItems != 2 {
		t.Fatalf("Expected counters to persist, got %d/%d", updated.ScannedItems, updated.NewItems)
	}

	stored, err := stores.Scans.GetSession(ctx, session.Id)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if stored.TotalItems != 10 {
		t.Fatalf("Expected 10 total items, got %d", stored.TotalItems)
	}
}

func TestSessionProgress(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	session, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "folder",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	entries := []*core.ScanProgressEntry{
		{SessionId: session.Id, ItemRef: "folder/a.txt", Path: "folder/a.txt", ItemType: core.ItemFile, Status: core.ItemProcessed, Size: 10},
		{SessionId: session.Id, ItemRef: "folder/b.txt", Path: "folder/b.txt", ItemType: core.ItemFile, Status: core.ItemScanned, Size: 20},
		{SessionId: session.Id, ItemRef: "folder/sub", Path: "folder/sub", ItemType: core.ItemFolder, Status: core.ItemScanned},
	}
	for _, entry := range entries {
		if err := stores.Scans.PutProgress(ctx, entry); err != nil {
			t.Fatalf("Failed to put progress: %v", err)
		}
	}

	got, err := stores.Scans.GetProgress(ctx, session.Id, "folder/b.txt")
	if err != nil {
		t.Fatalf("Failed to get progress: %v", err)
	}
	if got.Status != core.ItemScanned {
		t.Fatalf("Expected scanned, got %s", got.Status)
	}
	if got.ProcessedAt.IsZero() {
		t.Fatal("Expected ProcessedAt to be stamped")
	}

	_, err = stores.Scans.GetProgress(ctx, session.Id, "folder/missing.txt")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	all, err := stores.Scans.SessionProgress(ctx, session.Id)
	if err != nil {
		t.Fatalf("Failed to list progress: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}

	// Revisiting an item overwrites its entry rather than duplicating it
	if err := stores.Scans.PutProgress(ctx, &core.ScanProgressEntry{
		SessionId: session.Id, ItemRef: "folder/b.txt", Path: "folder/b.txt",
		ItemType: core.ItemFile, Status: core.ItemProcessed, Size: 20,
	}); err != nil {
		t.Fatalf("Failed to overwrite progress: %v", err)
	}
	all, err = stores.Scans.SessionProgress(ctx, session.Id)
	if err != nil {
		t.Fatalf("Failed to list progress: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries after overwrite, got %d", len(all))
	}
}

func TestRecentSessions(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	for _, folder := range []string{"a", "b", "c"} {
		if _, err := stores.Scans.CreateSession(ctx, &core.ScanSession{
			FolderRef: folder,
			Mode:      core.ScanFull,
		}); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
	}

	recent, err := stores.Scans.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list recent sessions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(recent))
	}
	if recent[0].FolderRef != "c" {
		t.Fatalf("Expected newest first, got %s", recent[0].FolderRef)
	}
}
