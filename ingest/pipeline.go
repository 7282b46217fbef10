package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/source"
	"github.com/poiesic/docpipe/storage"
)

// Pipeline is the ingestion facade: enumerate a folder, create a job for
// its ingestable files, and hand the work to the pool.
type Pipeline struct {
	catalog     source.Catalog
	registry    *extract.Registry
	coordinator *Coordinator
	pool        *Pool
	poolSize    int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRegistry sets a custom extractor registry.
func WithRegistry(registry *extract.Registry) Option {
	return func(p *Pipeline) error {
		p.registry = registry
		return nil
	}
}

// WithRetryPolicy sets the per-delivery retry budget for transient failures.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	catalog source.Catalog,
	embedder ai.Embedder,
	docs storage.DocumentRepository,
	coordinator *Coordinator,
	opts ...Option,
) (*Pipeline, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		catalog:     catalog,
		registry:    extract.NewRegistry(),
		coordinator: coordinator,
		poolSize:    poolSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	worker, err := NewWorker(catalog, p.registry, embedder, docs, coordinator)
	if err != nil {
		return nil, err
	}
	worker.maxAttempts = p.maxAttempts
	worker.baseDelay = p.baseDelay

	pool, err := NewPool(worker, docs, p.poolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Registry returns the extractor registry in use.
func (p *Pipeline) Registry() *extract.Registry {
	return p.registry
}

// Pool returns the worker pool for dispatch and drain operations.
func (p *Pipeline) Pool() *Pool {
	return p.pool
}

// Coordinator returns the job coordinator.
func (p *Pipeline) Coordinator() *Coordinator {
	return p.coordinator
}

// IngestFolder enumerates a folder and creates one job covering its
// ingestable files, then dispatches the job. Subfolders and files with
// unsupported mime types are skipped. Processing is asynchronous.
func (p *Pipeline) IngestFolder(ctx context.Context, folderRef string) (*core.IngestionJob, error) {
	items, err := p.catalog.List(ctx, folderRef)
	if err != nil {
		return nil, err
	}

	ingestable := make([]*source.Item, 0, len(items))
	for _, item := range items {
		if item.IsFolder || !p.registry.Supported(item.MimeType) {
			continue
		}
		ingestable = append(ingestable, item)
	}

	job, err := p.coordinator.CreateJob(ctx, folderRef, ingestable)
	if err != nil {
		return nil, err
	}

	if err := p.pool.Dispatch(ctx, job.Id); err != nil {
		return nil, err
	}
	return job, nil
}

// IngestItems creates and dispatches a job for an explicit item batch.
// Used by the scanner, which has already classified what to queue.
func (p *Pipeline) IngestItems(ctx context.Context, folderRef string, items []*source.Item) (*core.IngestionJob, error) {
	job, err := p.coordinator.CreateJob(ctx, folderRef, items)
	if err != nil {
		return nil, err
	}
	if err := p.pool.Dispatch(ctx, job.Id); err != nil {
		return nil, err
	}
	return job, nil
}

// Wait blocks until in-flight document processing drains.
func (p *Pipeline) Wait() {
	p.pool.Wait()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.pool.Release()
}
