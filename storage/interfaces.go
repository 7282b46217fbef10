package storage

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the repository and releases resources.
	Close() error
}

// VectorSearcher finds documents by embedding similarity. It is the read
// surface consumed by the downstream search layer.
type VectorSearcher interface {
	// FindSimilar finds completed documents similar to the given vector.
	// Returns matches with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first). Documents without a
	// persisted vector are never returned.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error)
}

// DocumentRepository provides operations for managing documents.
//
// All writes are optimistic: concurrent updates to the same row are detected
// by the backend and retried internally, so callers never observe a lost
// update. Transition is the only way to change a document's status.
type DocumentRepository interface {
	Repository
	VectorSearcher

	// PutDocuments overwrites document rows keyed by their content-derived IDs.
	// Used for job placeholders and for the persist step of the pipeline;
	// overwriting (rather than appending) keeps redelivery idempotent.
	// Sets InsertedAt on first write and UpdatedAt always.
	PutDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocumentBySource retrieves a document by its source item reference.
	// Returns ErrNotFound if no document has been recorded for the item.
	GetDocumentBySource(ctx context.Context, sourceId string) (*core.Document, error)

	// GetDocumentsByJob retrieves all documents owned by a job.
	GetDocumentsByJob(ctx context.Context, jobId core.ID) ([]*core.Document, error)

	// GetDocumentsByStatus retrieves up to limit documents in the given status.
	// A limit <= 0 means no limit.
	GetDocumentsByStatus(ctx context.Context, status core.DocumentStatus, limit int) ([]*core.Document, error)

	// Transition performs a conditional status update: it succeeds only if the
	// document's current status equals from. mutate, if non-nil, is applied to
	// the row inside the same transaction before the write. Returns the updated
	// document, or ErrConflict if the current status differs from from (the
	// at-most-one-claimant guarantee), or ErrNotFound.
	Transition(ctx context.Context, id core.ID, from, to core.DocumentStatus, mutate func(*core.Document)) (*core.Document, error)
}

// JobRepository provides operations for managing ingestion jobs.
type JobRepository interface {
	Repository

	// CreateJob persists a job and its full set of document placeholders in a
	// single transaction. The job receives a sequence-generated ID; placeholder
	// JobId fields are stamped with it. Partial job creation is never visible.
	CreateJob(ctx context.Context, job *core.IngestionJob, placeholders []*core.Document) (*core.IngestionJob, error)

	// GetJob retrieves a job by ID. Returns ErrNotFound if it doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.IngestionJob, error)

	// RecentJobs retrieves up to limit jobs ordered by start time, newest first.
	RecentJobs(ctx context.Context, limit int) ([]*core.IngestionJob, error)

	// RecordOutcome atomically applies a per-document outcome to the job's
	// counters and, when the last outstanding item resolves, transitions the
	// job to its terminal status. Counters are monotonically non-decreasing.
	// Returns the updated job.
	RecordOutcome(ctx context.Context, jobId core.ID, succeeded bool) (*core.IngestionJob, error)

	// TransitionJob performs a conditional job status update, succeeding only
	// if the current status equals from. errMsg, if non-empty, is persisted as
	// the job's error. Returns ErrConflict on a status mismatch.
	TransitionJob(ctx context.Context, id core.ID, from, to core.JobStatus, errMsg string) (*core.IngestionJob, error)
}

// LogRepository provides the append-only processing log.
// Entries are never mutated or deleted by the pipeline.
type LogRepository interface {
	Repository

	// Append persists a log entry with a sequence-generated ID and CreatedAt.
	Append(ctx context.Context, entry *core.ProcessingLogEntry) (*core.ProcessingLogEntry, error)

	// GetLogsForJob retrieves up to limit entries for a job, in append order.
	GetLogsForJob(ctx context.Context, jobId core.ID, limit int) ([]*core.ProcessingLogEntry, error)

	// GetLogsForDocument retrieves up to limit entries for a document, in
	// append order, across all jobs that processed it.
	GetLogsForDocument(ctx context.Context, documentId core.ID, limit int) ([]*core.ProcessingLogEntry, error)
}

// ScanRepository provides scan session and per-item progress storage.
type ScanRepository interface {
	Repository

	// CreateSession persists a new session for a folder. At most one
	// non-terminal session may exist per folder: if one does, CreateSession
	// fails with ErrSessionActive. Paused sessions hold the folder slot, so a
	// paused scan must be resumed (or failed) before a new one starts.
	CreateSession(ctx context.Context, session *core.ScanSession) (*core.ScanSession, error)

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id core.ID) (*core.ScanSession, error)

	// ActiveSession retrieves the folder's current non-terminal session.
	// Returns ErrNotFound if the folder has no active session.
	ActiveSession(ctx context.Context, folderRef string) (*core.ScanSession, error)

	// RecentSessions retrieves up to limit sessions, newest first.
	RecentSessions(ctx context.Context, limit int) ([]*core.ScanSession, error)

	// UpdateSession applies mutate to the session row inside a transaction.
	// When the mutation makes the session terminal, the folder's active-session
	// slot is released in the same transaction. Returns the updated session.
	UpdateSession(ctx context.Context, id core.ID, mutate func(*core.ScanSession) error) (*core.ScanSession, error)

	// TransitionSession performs a conditional session status update,
	// succeeding only if the current status equals from.
	// Returns ErrConflict on a status mismatch.
	TransitionSession(ctx context.Context, id core.ID, from, to core.ScanStatus, errMsg string) (*core.ScanSession, error)

	// PutProgress records (or overwrites) the progress entry for an item
	// within a session, stamping ProcessedAt.
	PutProgress(ctx context.Context, entry *core.ScanProgressEntry) error

	// GetProgress retrieves the progress entry for an item within a session.
	// Returns ErrNotFound if the item has not been visited.
	GetProgress(ctx context.Context, sessionId core.ID, itemRef string) (*core.ScanProgressEntry, error)

	// SessionProgress retrieves all progress entries for a session.
	SessionProgress(ctx context.Context, sessionId core.ID) ([]*core.ScanProgressEntry, error)
}
