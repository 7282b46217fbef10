package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Pool dispatches pending documents to a bounded set of workers.
type Pool struct {
	pool   *ants.Pool
	worker *Worker
	docs   storage.DocumentRepository
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a worker pool with the given concurrency.
func NewPool(worker *Worker, docs storage.DocumentRepository, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	antsPool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Pool{
		pool:   antsPool,
		worker: worker,
		docs:   docs,
		logger: slog.Default().With("component", "pool"),
	}, nil
}

// Dispatch submits every pending document of a job for processing.
// Processing is asynchronous; use Wait to block until in-flight work
// drains.
func (p *Pool) Dispatch(ctx context.Context, jobId core.ID) error {
	docs, err := p.docs.GetDocumentsByJob(ctx, jobId)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.Status != core.DocumentPending {
			continue
		}
		p.submit(ctx, doc.Id)
	}
	return nil
}

// DrainPending submits every pending document regardless of job. Used on
// startup to resume work interrupted by a crash or restart.
func (p *Pool) DrainPending(ctx context.Context) (int, error) {
	docs, err := p.docs.GetDocumentsByStatus(ctx, core.DocumentPending, 0)
	if err != nil {
		return 0, err
	}

	for _, doc := range docs {
		p.submit(ctx, doc.Id)
	}
	if len(docs) > 0 {
		p.logger.Info("requeued pending documents", "count", len(docs))
	}
	return len(docs), nil
}

// submit hands one document to the pool.
func (p *Pool) submit(ctx context.Context, docId core.ID) {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		if err := p.worker.Process(ctx, docId); err != nil {
			p.logger.Error("worker error", "document", docId, "err", err)
		}
	})
	if err != nil {
		p.wg.Done()
		p.logger.Error("failed to submit document", "document", docId, "err", err)
	}
}

// Wait blocks until all submitted documents have been processed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Release stops the pool. In-flight tasks finish; queued tasks are dropped.
func (p *Pool) Release() {
	p.pool.Release()
}
