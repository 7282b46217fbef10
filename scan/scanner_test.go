package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	aimock "github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/ingest"
	notifymock "github.com/poiesic/docpipe/notify/mock"
	"github.com/poiesic/docpipe/source"
	sourcemock "github.com/poiesic/docpipe/source/mock"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanRig struct {
	stores   *badger.Stores
	catalog  *sourcemock.Catalog
	embedder *aimock.MockEmbedder
	sink     *notifymock.Sink
	pipeline *ingest.Pipeline
	scanner  *Scanner
}

func newScanRig(t *testing.T) *scanRig {
	t.Helper()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	catalog := sourcemock.NewCatalog()
	embedder := aimock.NewMockEmbedder()
	sink := notifymock.NewSink()

	coordinator, err := ingest.NewCoordinator(stores.Jobs, stores.Documents, stores.Logs, sink)
	require.NoError(t, err)

	pipeline, err := ingest.NewPipeline(catalog, embedder, stores.Documents, coordinator,
		ingest.WithPoolSize(2),
		ingest.WithRetryPolicy(3, time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	scanner, err := NewScanner(catalog, stores.Documents, stores.Scans, pipeline, WithSink(sink))
	require.NoError(t, err)

	return &scanRig{
		stores:   stores,
		catalog:  catalog,
		embedder: embedder,
		sink:     sink,
		pipeline: pipeline,
		scanner:  scanner,
	}
}

func (r *scanRig) addTextFile(folderRef, name, content, marker string) *source.Item {
	item := &source.Item{
		ID:            folderRef + "/" + name,
		Name:          name,
		MimeType:      "text/plain",
		VersionMarker: marker,
	}
	r.catalog.AddFile(folderRef, item, []byte(content))
	return item
}

func (r *scanRig) seedCompletedDocument(t *testing.T, sourceId, marker string) {
	t.Helper()
	_, err := r.stores.Documents.PutDocuments(context.Background(), &core.Document{
		SourceId:      sourceId,
		Status:        core.DocumentCompleted,
		VersionMarker: marker,
		Vector:        []float32{1, 0},
	})
	require.NoError(t, err)
}

func TestScanClassifiesNewChangedUnchanged(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	// 3 new, 1 unchanged, 1 changed
	rig.addTextFile("docs", "n1.txt", "new one", "v1")
	rig.addTextFile("docs", "n2.txt", "new two", "v1")
	rig.addTextFile("docs", "n3.txt", "new three", "v1")
	rig.addTextFile("docs", "same.txt", "unchanged", "v1")
	rig.seedCompletedDocument(t, "docs/same.txt", "v1")
	rig.addTextFile("docs", "edited.txt", "edited body", "v2")
	rig.seedCompletedDocument(t, "docs/edited.txt", "v1")

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)

	assert.Equal(t, core.ScanCompleted, session.Status)
	assert.Equal(t, 5, session.TotalItems)
	assert.Equal(t, 5, session.ScannedItems)
	assert.Equal(t, 3, session.NewItems)
	assert.Equal(t, 1, session.ChangedItems)
	assert.InDelta(t, 100.0, session.Completion(), 0.01)

	// Exactly one job, covering the 4 new+changed files
	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 4, jobs[0].TotalItems)

	rig.pipeline.Wait()

	final, err := rig.stores.Jobs.GetJob(ctx, jobs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, final.Status)
	assert.Equal(t, 4, final.ProcessedItems)

	require.Eventually(t, func() bool {
		return len(rig.sink.ScanSummaries()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestScanUnchangedDoesNoWork(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "same.txt", "unchanged", "v1")
	rig.seedCompletedDocument(t, "docs/same.txt", "v1")

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	assert.Equal(t, core.ScanCompleted, session.Status)
	assert.Equal(t, 1, session.ScannedItems)
	assert.Equal(t, 0, session.NewItems)
	assert.Equal(t, 0, session.ChangedItems)

	// No job, no fetch, no embedding
	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 0, rig.catalog.ContentCalls())
	assert.Equal(t, 0, rig.embedder.CallCount())
}

func TestScanChangeQueuedOncePerMarker(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	// The document failed last time around, fingerprint unchanged
	rig.addTextFile("docs", "broken.txt", "content", "v1")
	_, err := rig.stores.Documents.PutDocuments(ctx, &core.Document{
		SourceId:      "docs/broken.txt",
		Status:        core.DocumentFailed,
		VersionMarker: "v1",
		Error:         "embedding outage",
	})
	require.NoError(t, err)

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	// Same marker: not requeued, failed documents wait for explicit reprocess
	assert.Equal(t, 0, session.NewItems+session.ChangedItems)

	// The marker changes: queued exactly once
	rig.catalog.SetVersionMarker("docs/broken.txt", "v2")

	session, err = rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()
	assert.Equal(t, 1, session.ChangedItems)
}

func TestScanSkipsUnsupportedMime(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "a.txt", "text", "v1")
	rig.catalog.AddFile("docs", &source.Item{
		ID: "docs/pic.png", Name: "pic.png", MimeType: "image/png", VersionMarker: "v1",
	}, []byte{1, 2, 3})

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	// The image is walked and counted but never queued
	assert.Equal(t, 2, session.ScannedItems)
	assert.Equal(t, 1, session.NewItems)

	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].TotalItems)
}

func TestScanRecursesSubfolders(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "top.txt", "top", "v1")
	rig.catalog.AddFolder("docs", &source.Item{ID: "docs/sub", Name: "sub"})
	rig.addTextFile("docs/sub", "nested.txt", "nested", "v1")

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	// 2 files + 1 folder
	assert.Equal(t, 3, session.TotalItems)
	assert.Equal(t, 3, session.ScannedItems)
	assert.Equal(t, 2, session.NewItems)

	entries, err := rig.stores.Scans.SessionProgress(ctx, session.Id)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	folderEntry, err := rig.stores.Scans.GetProgress(ctx, session.Id, "docs/sub")
	require.NoError(t, err)
	assert.Equal(t, core.ItemFolder, folderEntry.ItemType)
	assert.Equal(t, core.ItemScanned, folderEntry.Status, "folders are walked, never queued")
}

func TestScanFullModeRequeuesEverything(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "same.txt", "unchanged", "v1")
	rig.seedCompletedDocument(t, "docs/same.txt", "v1")

	session, err := rig.scanner.Run(ctx, "docs", core.ScanFull)
	require.NoError(t, err)
	rig.pipeline.Wait()

	assert.Equal(t, 1, session.ChangedItems)
	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

// flakyDocs fails lookups for one source id, simulating store trouble
// confined to a single item.
type flakyDocs struct {
	storage.DocumentRepository
	failSource string
}

func (f *flakyDocs) GetDocumentBySource(ctx context.Context, sourceId string) (*core.Document, error) {
	if sourceId == f.failSource {
		return nil, errors.New("store read timeout")
	}
	return f.DocumentRepository.GetDocumentBySource(ctx, sourceId)
}

func TestScanItemFailureDoesNotAbortSession(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "bad.txt", "broken", "v1")
	rig.addTextFile("docs", "good.txt", "healthy", "v1")

	scanner, err := NewScanner(rig.catalog,
		&flakyDocs{DocumentRepository: rig.stores.Documents, failSource: "docs/bad.txt"},
		rig.stores.Scans, rig.pipeline, WithSink(rig.sink))
	require.NoError(t, err)

	session, err := scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	// The session completes; only the broken item is marked failed
	assert.Equal(t, core.ScanCompleted, session.Status)
	assert.Equal(t, 2, session.ScannedItems)
	assert.Equal(t, 1, session.NewItems)

	entry, err := rig.stores.Scans.GetProgress(ctx, session.Id, "docs/bad.txt")
	require.NoError(t, err)
	assert.Equal(t, core.ItemFailed, entry.Status)
	assert.NotEmpty(t, entry.Error)

	// The healthy item still lands in a job
	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].TotalItems)
}

func TestScanUnreadableSubfolderSkipped(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "top.txt", "top", "v1")
	// The folder itself is listed under docs, but it has no registered
	// children: every attempt to list it fails
	rig.catalog.AddFolder("docs", &source.Item{ID: "docs/locked", Name: "locked"})

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()

	assert.Equal(t, core.ScanCompleted, session.Status)
	assert.Equal(t, 2, session.ScannedItems)
	assert.Equal(t, 1, session.NewItems)
}

func TestScanUnreachableSourceFailsSession(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	// Folder never registered: listing the root fails
	session, err := rig.scanner.Run(ctx, "missing", core.ScanIncremental)
	require.Error(t, err)
	require.NotNil(t, session)
	assert.Equal(t, core.ScanFailed, session.Status)
	assert.NotEmpty(t, session.Error)

	// The slot is released; the next scan may start
	_, err = rig.stores.Scans.ActiveSession(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScanRefusesConcurrentSession(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "a.txt", "text", "v1")

	// Simulate a live session holding the folder slot
	_, err := rig.stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "docs",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	require.NoError(t, err)

	_, err = rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	assert.ErrorIs(t, err, storage.ErrSessionActive)
}

func TestScanPauseAndResume(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "a.txt", "alpha", "v1")
	rig.catalog.AddFolder("docs", &source.Item{ID: "docs/sub", Name: "sub"})
	rig.addTextFile("docs/sub", "b.txt", "beta", "v1")
	rig.addTextFile("docs/sub", "c.txt", "gamma", "v1")

	// Pause the session as soon as the walker first touches the subfolder
	pausedOnce := false
	var hook func(fctx context.Context, folderRef string) ([]*source.Item, error)
	hook = func(fctx context.Context, folderRef string) ([]*source.Item, error) {
		if folderRef == "docs/sub" && !pausedOnce {
			pausedOnce = true
			if active, aerr := rig.stores.Scans.ActiveSession(fctx, "docs"); aerr == nil {
				_, _ = rig.scanner.Pause(fctx, active.Id)
			}
		}
		rig.catalog.ListFunc = nil
		items, err := rig.catalog.List(fctx, folderRef)
		rig.catalog.ListFunc = hook
		return items, err
	}
	rig.catalog.ListFunc = hook

	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	assert.Equal(t, core.ScanPaused, session.Status)
	assert.Less(t, session.ScannedItems, session.TotalItems)

	// Paused sessions hold the slot
	_, err = rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	assert.ErrorIs(t, err, storage.ErrSessionActive)

	// Resume converges on the same counts an uninterrupted run produces
	resumed, err := rig.scanner.Resume(ctx, session.Id)
	require.NoError(t, err)
	rig.pipeline.Wait()

	assert.Equal(t, core.ScanCompleted, resumed.Status)
	assert.Equal(t, 4, resumed.TotalItems)
	assert.Equal(t, 4, resumed.ScannedItems)
	assert.Equal(t, 3, resumed.NewItems)

	// All three files land in jobs exactly once
	jobs, err := rig.stores.Jobs.RecentJobs(ctx, 10)
	require.NoError(t, err)
	totalQueued := 0
	for _, job := range jobs {
		totalQueued += job.TotalItems
	}
	assert.Equal(t, 3, totalQueued)
}

func TestRecoverActiveResumesOrphanedSession(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "a.txt", "alpha", "v1")
	rig.addTextFile("docs", "b.txt", "beta", "v1")

	// A crashed process left the session running and holding the slot
	orphan, err := rig.stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "docs",
		Mode:      core.ScanIncremental,
		Status:    core.ScanRunning,
	})
	require.NoError(t, err)

	_, err = rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.ErrorIs(t, err, storage.ErrSessionActive)

	recovered, err := rig.scanner.RecoverActive(ctx, "docs")
	require.NoError(t, err)
	require.NotNil(t, recovered)
	rig.pipeline.Wait()

	assert.Equal(t, orphan.Id, recovered.Id)
	assert.Equal(t, core.ScanCompleted, recovered.Status)
	assert.Equal(t, 2, recovered.ScannedItems)
	assert.Equal(t, 2, recovered.NewItems)

	// The slot is free again
	_, err = rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
}

func TestRecoverActiveLeavesPausedAndIdleFolders(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	// Nothing to recover
	session, err := rig.scanner.RecoverActive(ctx, "docs")
	require.NoError(t, err)
	assert.Nil(t, session)

	// A deliberately paused session is not restarted behind the
	// operator's back
	paused, err := rig.stores.Scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: "docs",
		Mode:      core.ScanIncremental,
		Status:    core.ScanPaused,
	})
	require.NoError(t, err)

	session, err = rig.scanner.RecoverActive(ctx, "docs")
	require.NoError(t, err)
	assert.Nil(t, session)

	current, err := rig.stores.Scans.GetSession(ctx, paused.Id)
	require.NoError(t, err)
	assert.Equal(t, core.ScanPaused, current.Status)
}

func TestResumeRejectsCompletedSession(t *testing.T) {
	rig := newScanRig(t)
	ctx := context.Background()

	rig.addTextFile("docs", "a.txt", "alpha", "v1")
	session, err := rig.scanner.Run(ctx, "docs", core.ScanIncremental)
	require.NoError(t, err)
	rig.pipeline.Wait()
	require.Equal(t, core.ScanCompleted, session.Status)

	_, err = rig.scanner.Resume(ctx, session.Id)
	assert.ErrorIs(t, err, ErrSessionNotResumable)
}
