package ingest

import "errors"

var (
	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrLogRepositoryRequired is returned when a log repository is not provided.
	ErrLogRepositoryRequired = errors.New("log repository required")

	// ErrCatalogRequired is returned when a source catalog is not provided.
	ErrCatalogRequired = errors.New("source catalog required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned for a non-positive retry attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNoFailedDocuments is returned when a reprocess request finds
	// nothing to requeue.
	ErrNoFailedDocuments = errors.New("job has no failed documents")
)
