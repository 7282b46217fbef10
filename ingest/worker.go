package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/source"
	"github.com/poiesic/docpipe/storage"
)

const (
	// defaultMaxAttempts bounds retries of a transient failure within one
	// delivery. Exhaustion marks the document failed.
	defaultMaxAttempts = 3

	defaultBaseDelay = 500 * time.Millisecond
)

// Worker processes one document at a time through the pipeline:
// claim, fetch, extract, embed, persist, report.
type Worker struct {
	catalog     source.Catalog
	registry    *extract.Registry
	embedder    ai.Embedder
	docs        storage.DocumentRepository
	coordinator *Coordinator
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// NewWorker creates a worker over the given collaborators.
func NewWorker(catalog source.Catalog, registry *extract.Registry, embedder ai.Embedder, docs storage.DocumentRepository, coordinator *Coordinator) (*Worker, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if registry == nil {
		registry = extract.NewRegistry()
	}

	return &Worker{
		catalog:     catalog,
		registry:    registry,
		embedder:    embedder,
		docs:        docs,
		coordinator: coordinator,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default().With("component", "worker"),
	}, nil
}

// Process runs one document through the pipeline.
//
// The claim is a conditional pending->processing update: under redelivery
// or racing workers, every claimant but one loses the claim and withdraws
// without side effects. Outcomes are reported to the coordinator exactly
// once per successful claim.
func (w *Worker) Process(ctx context.Context, docId core.ID) error {
	doc, err := w.docs.Transition(ctx, docId, core.DocumentPending, core.DocumentProcessing, nil)
	if err == storage.ErrConflict {
		// Another claimant won; this delivery is a no-op
		w.logger.Debug("lost claim on document", "document", docId)
		return nil
	}
	if err != nil {
		return err
	}

	w.coordinator.appendLog(ctx, doc.Id, doc.JobId, core.LogInfo, "processing started", nil)

	text, vector, err := w.run(ctx, doc)
	if err != nil {
		return w.fail(ctx, doc, err)
	}

	_, err = w.docs.Transition(ctx, doc.Id, core.DocumentProcessing, core.DocumentCompleted, func(d *core.Document) {
		d.Vector = vector
		d.Snippet = extract.Snippet(text)
		d.ContentLength = len(text)
		d.Error = ""
		d.ProcessedAt = time.Now().UTC()
	})
	if err != nil {
		return w.fail(ctx, doc, err)
	}

	w.coordinator.appendLog(ctx, doc.Id, doc.JobId, core.LogInfo, "processing completed", map[string]string{
		"content_length": fmt.Sprintf("%d", len(text)),
	})
	_, err = w.coordinator.RecordItemResult(ctx, doc.JobId, true)
	if err != nil && err != storage.ErrConflict {
		return err
	}
	return nil
}

// run executes the fetch, extract and embed steps.
func (w *Worker) run(ctx context.Context, doc *core.Document) (string, []float32, error) {
	onRetry := func(attempt int, err error) {
		w.coordinator.appendLog(ctx, doc.Id, doc.JobId, core.LogWarn, "transient failure, retrying", map[string]string{
			"attempt": fmt.Sprintf("%d", attempt),
			"error":   err.Error(),
		})
	}

	var content []byte
	err := RetryTransient(ctx, func() error {
		var fetchErr error
		content, fetchErr = w.catalog.Content(ctx, doc.SourceId)
		if fetchErr != nil {
			// Source hiccups are worth retrying; the item may reappear
			return core.MarkTransient(fetchErr)
		}
		return nil
	}, w.maxAttempts, w.baseDelay, onRetry)
	if err != nil {
		return "", nil, fmt.Errorf("fetching content: %w", err)
	}

	text, err := w.registry.Extract(ctx, content, doc.MimeType)
	if err != nil {
		return "", nil, err
	}

	var vector []float32
	err = RetryTransient(ctx, func() error {
		var embedErr error
		vector, embedErr = w.embedder.EmbedText(ctx, text)
		return embedErr
	}, w.maxAttempts, w.baseDelay, onRetry)
	if err != nil {
		return "", nil, fmt.Errorf("embedding content: %w", err)
	}

	return text, ai.NormalizeVector(vector), nil
}

// fail records a pipeline failure on the document and reports the outcome.
func (w *Worker) fail(ctx context.Context, doc *core.Document, cause error) error {
	w.logger.Warn("document processing failed", "document", doc.Id, "job", doc.JobId, "err", cause)

	_, err := w.docs.Transition(ctx, doc.Id, core.DocumentProcessing, core.DocumentFailed, func(d *core.Document) {
		d.Error = cause.Error()
	})
	if err != nil && err != storage.ErrConflict {
		return err
	}

	level := core.LogError
	message := "processing failed"
	if core.IsPermanent(cause) {
		message = "processing failed permanently"
	}
	w.coordinator.appendLog(ctx, doc.Id, doc.JobId, level, message, map[string]string{
		"error": cause.Error(),
	})

	_, err = w.coordinator.RecordItemResult(ctx, doc.JobId, false)
	if err != nil && err != storage.ErrConflict {
		return err
	}
	return nil
}
