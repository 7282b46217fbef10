package scan

import "errors"

var (
	// ErrCatalogRequired is returned when a source catalog is not provided.
	ErrCatalogRequired = errors.New("source catalog required")

	// ErrScanRepositoryRequired is returned when a scan repository is not provided.
	ErrScanRepositoryRequired = errors.New("scan repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrSessionNotResumable is returned when resuming a session that is
	// neither paused nor left over from an interrupted run.
	ErrSessionNotResumable = errors.New("session is not resumable")

	// ErrFolderNotRegistered is returned when triggering an unknown folder.
	ErrFolderNotRegistered = errors.New("folder not registered")
)
