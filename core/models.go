package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Document IDs derive from their source item reference, so a document keeps a
// single identity across ingestion jobs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// JobStatus represents the lifecycle state of an IngestionJob.
type JobStatus int

const (
	// JobPending means the job and its document placeholders are persisted
	// but no documents have been dispatched yet.
	JobPending JobStatus = iota + 1
	// JobRunning means documents have been dispatched to workers.
	JobRunning
	// JobCompleted means all items are accounted for and at least one succeeded.
	JobCompleted
	// JobFailed means every item failed, or the job hit a foundational failure.
	JobFailed
)

// Terminal reports whether no further automatic transition occurs.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// DocumentStatus represents the processing state of a Document.
type DocumentStatus int

const (
	// DocumentPending means the document is queued and claimable by a worker.
	DocumentPending DocumentStatus = iota + 1
	// DocumentProcessing means exactly one worker holds the document.
	DocumentProcessing
	// DocumentCompleted means extraction, embedding and persistence all succeeded.
	DocumentCompleted
	// DocumentFailed means a pipeline step failed. A failed document is
	// requeued only by an explicit reprocess request, never automatically.
	DocumentFailed
)

func (s DocumentStatus) String() string {
	switch s {
	case DocumentPending:
		return "pending"
	case DocumentProcessing:
		return "processing"
	case DocumentCompleted:
		return "completed"
	case DocumentFailed:
		return "failed"
	}
	return "unknown"
}

// ScanMode selects the kind of walk a scan session performs.
type ScanMode int

const (
	// ScanFull treats every discovered file as ingestable.
	ScanFull ScanMode = iota + 1
	// ScanIncremental diffs discovered items against stored fingerprints
	// and queues only new or changed files.
	ScanIncremental
)

func (m ScanMode) String() string {
	switch m {
	case ScanFull:
		return "full"
	case ScanIncremental:
		return "incremental"
	}
	return "unknown"
}

// ScanStatus represents the lifecycle state of a ScanSession.
type ScanStatus int

const (
	ScanPending ScanStatus = iota + 1
	ScanRunning
	ScanCompleted
	ScanFailed
	// ScanPaused means the walker stopped dequeuing items; the session
	// can be resumed from its progress log.
	ScanPaused
)

// Terminal reports whether the session reached a final state.
// Paused sessions are not terminal; they resume from their progress log.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

func (s ScanStatus) String() string {
	switch s {
	case ScanPending:
		return "pending"
	case ScanRunning:
		return "running"
	case ScanCompleted:
		return "completed"
	case ScanFailed:
		return "failed"
	case ScanPaused:
		return "paused"
	}
	return "unknown"
}

// ItemType distinguishes files from folders in scan progress entries.
type ItemType int

const (
	ItemFile ItemType = iota + 1
	ItemFolder
)

func (t ItemType) String() string {
	switch t {
	case ItemFile:
		return "file"
	case ItemFolder:
		return "folder"
	}
	return "unknown"
}

// ItemStatus represents the per-item outcome recorded during a scan.
type ItemStatus int

const (
	// ItemPending is reserved for items discovered but not yet visited.
	ItemPending ItemStatus = iota + 1
	// ItemScanned means the item was visited and classified.
	ItemScanned
	// ItemProcessed means the item was queued into an ingestion job.
	ItemProcessed
	// ItemFailed means enumerating this item failed; the session continues.
	ItemFailed
)

func (s ItemStatus) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemScanned:
		return "scanned"
	case ItemProcessed:
		return "processed"
	case ItemFailed:
		return "failed"
	}
	return "unknown"
}

// LogLevel classifies processing log entries.
type LogLevel int

const (
	LogDebug LogLevel = iota + 1
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	}
	return "unknown"
}

// IngestionJob aggregates the outcome of processing a batch of documents.
// A job is created atomically with its full set of document placeholders,
// and becomes terminal once every item is accounted for.
type IngestionJob struct {
	Id             ID
	FolderRef      string
	Status         JobStatus
	TotalItems     int
	ProcessedItems int
	FailedItems    int
	Error          string
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Remaining returns the number of items not yet accounted for.
func (j *IngestionJob) Remaining() int {
	return j.TotalItems - j.ProcessedItems - j.FailedItems
}

// ApplyOutcome folds one per-document outcome into the job's counters and,
// when the last outstanding item resolves, moves the job to its terminal
// status: completed if at least one item succeeded (partial success is
// reported through FailedItems, preserving the work that did land), failed
// only if every item failed. Counters only ever grow.
func (j *IngestionJob) ApplyOutcome(succeeded bool) {
	if succeeded {
		j.ProcessedItems++
	} else {
		j.FailedItems++
	}
	if j.Status == JobPending {
		j.Status = JobRunning
	}
	if j.Remaining() > 0 {
		return
	}
	if j.ProcessedItems > 0 {
		j.Status = JobCompleted
	} else {
		j.Status = JobFailed
		j.Error = "all items failed"
	}
	j.CompletedAt = time.Now().UTC()
}

// Summary builds the count-based summary handed to notification sinks.
func (j *IngestionJob) Summary() *JobSummary {
	return &JobSummary{
		JobId:          j.Id,
		FolderRef:      j.FolderRef,
		Status:         j.Status,
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		FailedItems:    j.FailedItems,
		Duration:       j.CompletedAt.Sub(j.StartedAt),
	}
}

// Document is a searchable unit of content discovered in a source tree.
// It persists across jobs; reprocessing assigns it to a new JobId rather
// than duplicating the row.
type Document struct {
	Id            ID // IDFromContent(SourceId)
	SourceId      string
	Name          string
	MimeType      string
	SourceURL     string
	Status        DocumentStatus
	Error         string
	JobId         ID // most recent owning job only
	Size          int64
	ContentLength int
	Snippet       string // leading slice of extracted text, capped at SnippetLimit
	VersionMarker string // opaque source fingerprint; sole re-ingestion signal
	Vector        []float32
	InsertedAt    time.Time
	UpdatedAt     time.Time
	ProcessedAt   time.Time
}

// ProcessingLogEntry is the append-only audit trail for document transitions.
// Entries are never mutated or deleted by the pipeline.
type ProcessingLogEntry struct {
	Id         ID
	DocumentId ID
	JobId      ID
	Level      LogLevel
	Message    string
	Detail     map[string]string
	CreatedAt  time.Time
}

// ScanSession records the progress of one walk over a source folder.
type ScanSession struct {
	Id           ID
	FolderRef    string
	Mode         ScanMode
	Status       ScanStatus
	TotalItems   int
	ScannedItems int
	NewItems     int
	ChangedItems int
	TotalSize    int64
	Error        string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Completion returns the scan completion percentage.
func (s *ScanSession) Completion() float64 {
	if s.TotalItems <= 0 {
		return 100.0
	}
	return float64(s.ScannedItems) / float64(s.TotalItems) * 100.0
}

// Summary builds the completion summary handed to notification sinks.
func (s *ScanSession) Summary() *ScanSummary {
	return &ScanSummary{
		SessionId:    s.Id,
		FolderRef:    s.FolderRef,
		Status:       s.Status,
		TotalItems:   s.TotalItems,
		ScannedItems: s.ScannedItems,
		NewItems:     s.NewItems,
		ChangedItems: s.ChangedItems,
		Duration:     s.CompletedAt.Sub(s.StartedAt),
	}
}

// ScanProgressEntry is the per-item checkpoint log that enables resume.
// One row per discovered item within a session.
type ScanProgressEntry struct {
	SessionId   ID
	ItemRef     string
	Path        string
	ItemType    ItemType
	Status      ItemStatus
	Size        int64
	Error       string
	ProcessedAt time.Time
}

// SimilarityMatch represents a document match from vector similarity search.
type SimilarityMatch struct {
	Document *Document
	Score    float32
}

// JobSummary is the count-based completion summary for an ingestion job.
type JobSummary struct {
	JobId          ID
	FolderRef      string
	Status         JobStatus
	TotalItems     int
	ProcessedItems int
	FailedItems    int
	Duration       time.Duration
}

// ScanSummary is the completion summary for a scan session.
type ScanSummary struct {
	SessionId    ID
	FolderRef    string
	Status       ScanStatus
	TotalItems   int
	ScannedItems int
	NewItems     int
	ChangedItems int
	Duration     time.Duration
}
