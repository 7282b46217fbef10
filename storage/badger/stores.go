package badger

import "errors"

// Stores bundles the repositories that share one BadgerDB backend.
// Close tears them down in reverse dependency order.
type Stores struct {
	Backend   *Backend
	Documents *DocumentRepository
	Jobs      *JobRepository
	Logs      *LogRepository
	Scans     *ScanRepository
}

// OpenStores opens a backend at filePath and wires every repository to it.
func OpenStores(filePath string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	docs := NewDocumentRepository(backend)

	jobs, err := NewJobRepository(backend, docs)
	if err != nil {
		backend.Close()
		return nil, err
	}

	logs, err := NewLogRepository(backend)
	if err != nil {
		jobs.Close()
		backend.Close()
		return nil, err
	}

	scans, err := NewScanRepository(backend)
	if err != nil {
		logs.Close()
		jobs.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:   backend,
		Documents: docs,
		Jobs:      jobs,
		Logs:      logs,
		Scans:     scans,
	}, nil
}

// Close releases sequences and closes the backend.
func (s *Stores) Close() error {
	var errs []error
	errs = append(errs, s.Scans.Close())
	errs = append(errs, s.Logs.Close())
	errs = append(errs, s.Jobs.Close())
	errs = append(errs, s.Documents.Close())
	errs = append(errs, s.Backend.Close())
	return errors.Join(errs...)
}
