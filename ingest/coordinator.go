// Package ingest contains the job coordinator, the document pipeline
// workers, and the worker pool that connects them.
//
// A job is born atomically with one placeholder document per source item.
// Workers claim placeholders with a conditional status update, run them
// through extract, embed and persist, and report the outcome back to the
// coordinator, which folds it into the job's counters and resolves the
// job when the last item lands.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/source"
	"github.com/poiesic/docpipe/storage"
)

// Coordinator owns job lifecycle: creation, outcome accounting, terminal
// aggregation, and the processing audit log.
type Coordinator struct {
	jobs   storage.JobRepository
	docs   storage.DocumentRepository
	logs   storage.LogRepository
	sink   notify.Sink
	logger *slog.Logger
}

// NewCoordinator creates a coordinator. sink may be nil when nothing
// listens for completions.
func NewCoordinator(jobs storage.JobRepository, docs storage.DocumentRepository, logs storage.LogRepository, sink notify.Sink) (*Coordinator, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if logs == nil {
		return nil, ErrLogRepositoryRequired
	}

	return &Coordinator{
		jobs:   jobs,
		docs:   docs,
		logs:   logs,
		sink:   sink,
		logger: slog.Default().With("component", "coordinator"),
	}, nil
}

// CreateJob creates a job for a batch of source items, persisting the job
// row and one placeholder document per item in a single transaction.
// Placeholders record each item's name, mime type, size and version marker
// as seen at enqueue time: the marker observed here is what a later scan
// compares against, so a change is queued exactly once no matter how
// processing goes.
// An empty item set is rejected with a validation error.
func (c *Coordinator) CreateJob(ctx context.Context, folderRef string, items []*source.Item) (*core.IngestionJob, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyItems)
	}

	placeholders := make([]*core.Document, 0, len(items))
	for _, item := range items {
		placeholders = append(placeholders, &core.Document{
			SourceId:      item.ID,
			Name:          item.Name,
			MimeType:      item.MimeType,
			SourceURL:     item.URL,
			Size:          item.Size,
			VersionMarker: item.VersionMarker,
		})
	}

	job, err := c.jobs.CreateJob(ctx, &core.IngestionJob{FolderRef: folderRef}, placeholders)
	if err != nil {
		return nil, err
	}

	c.logger.Info("created ingestion job", "job", job.Id, "folder", folderRef, "items", job.TotalItems)
	return job, nil
}

// RecordItemResult folds one document outcome into the owning job and, when
// that resolves the job, emits the completion notification. A redelivered
// outcome arriving after the job is terminal is dropped.
func (c *Coordinator) RecordItemResult(ctx context.Context, jobId core.ID, succeeded bool) (*core.IngestionJob, error) {
	job, err := c.jobs.RecordOutcome(ctx, jobId, succeeded)
	if err == storage.ErrConflict {
		c.logger.Warn("dropping outcome for terminal job", "job", jobId)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		c.logger.Info("ingestion job resolved",
			"job", job.Id, "status", job.Status.String(),
			"processed", job.ProcessedItems, "failed", job.FailedItems)
		if c.sink != nil {
			c.sink.JobCompleted(job.Summary())
		}
	}
	return job, nil
}

// JobStatus retrieves the current state of a job.
func (c *Coordinator) JobStatus(ctx context.Context, jobId core.ID) (*core.IngestionJob, error) {
	return c.jobs.GetJob(ctx, jobId)
}

// RecentJobs retrieves up to limit jobs, newest first.
func (c *Coordinator) RecentJobs(ctx context.Context, limit int) ([]*core.IngestionJob, error) {
	return c.jobs.RecentJobs(ctx, limit)
}

// JobLogs retrieves the processing log for a job, in append order.
func (c *Coordinator) JobLogs(ctx context.Context, jobId core.ID, limit int) ([]*core.ProcessingLogEntry, error) {
	return c.logs.GetLogsForJob(ctx, jobId, limit)
}

// Reprocess requeues the failed documents of a terminal job under a new
// job. Documents are never requeued automatically; this is the explicit
// path. The rows keep their identity and move to the new job.
func (c *Coordinator) Reprocess(ctx context.Context, jobId core.ID) (*core.IngestionJob, error) {
	previous, err := c.jobs.GetJob(ctx, jobId)
	if err != nil {
		return nil, err
	}

	docs, err := c.docs.GetDocumentsByJob(ctx, jobId)
	if err != nil {
		return nil, err
	}

	items := make([]*source.Item, 0, len(docs))
	for _, doc := range docs {
		if doc.Status != core.DocumentFailed {
			continue
		}
		items = append(items, &source.Item{
			ID:            doc.SourceId,
			Name:          doc.Name,
			MimeType:      doc.MimeType,
			URL:           doc.SourceURL,
			Size:          doc.Size,
			VersionMarker: doc.VersionMarker,
		})
	}
	if len(items) == 0 {
		return nil, ErrNoFailedDocuments
	}

	job, err := c.CreateJob(ctx, previous.FolderRef, items)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Status != core.DocumentFailed {
			continue
		}
		c.appendLog(ctx, doc.Id, job.Id, core.LogInfo, "requeued for reprocessing", map[string]string{
			"previous_job": fmt.Sprintf("%d", jobId),
		})
	}
	return job, nil
}

// SkipPending resolves a job's remaining pending documents as failed with
// a skip marker. It is the out-of-band cancellation path for a job that
// will never finish on its own.
func (c *Coordinator) SkipPending(ctx context.Context, jobId core.ID) (int, error) {
	docs, err := c.docs.GetDocumentsByJob(ctx, jobId)
	if err != nil {
		return 0, err
	}

	skipped := 0
	for _, doc := range docs {
		if doc.Status != core.DocumentPending {
			continue
		}
		_, err := c.docs.Transition(ctx, doc.Id, core.DocumentPending, core.DocumentFailed, func(d *core.Document) {
			d.Error = "skipped by operator"
		})
		if err == storage.ErrConflict {
			// A worker claimed it in the meantime; let it run
			continue
		}
		if err != nil {
			return skipped, err
		}

		c.appendLog(ctx, doc.Id, jobId, core.LogWarn, "skipped by operator", nil)
		if _, err := c.RecordItemResult(ctx, jobId, false); err != nil && err != storage.ErrConflict {
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// appendLog writes an audit entry, logging rather than failing on error:
// the audit trail never blocks pipeline progress.
func (c *Coordinator) appendLog(ctx context.Context, docId, jobId core.ID, level core.LogLevel, message string, detail map[string]string) {
	_, err := c.logs.Append(ctx, &core.ProcessingLogEntry{
		DocumentId: docId,
		JobId:      jobId,
		Level:      level,
		Message:    message,
		Detail:     detail,
	})
	if err != nil {
		c.logger.Error("failed to append processing log entry", "document", docId, "job", jobId, "err", err)
	}
}
