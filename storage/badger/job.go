package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
	docs    *DocumentRepository
	idSeq   *badger.Sequence
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
// Placeholders written by CreateJob go through the document repository so
// the job index stays consistent.
func NewJobRepository(backend *Backend, docs *DocumentRepository) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		docs:    docs,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// CreateJob persists a job and its document placeholders in one transaction.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.IngestionJob, placeholders []*core.Document) (*core.IngestionJob, error) {
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		job.Id = core.ID(nextID)
		job.StartedAt = time.Now().UTC()
		if job.Status == 0 {
			job.Status = core.JobPending
		}
		job.TotalItems = len(placeholders)

		if err := core.ValidateJob(job); err != nil {
			return err
		}

		if err := r.writeJob(tx, nil, job); err != nil {
			return err
		}

		now := job.StartedAt
		for _, doc := range placeholders {
			doc.JobId = job.Id
			doc.Status = core.DocumentPending
			if doc.Id == 0 {
				doc.Id = core.IDFromContent(doc.SourceId)
			}
			if err := core.ValidateDocument(doc); err != nil {
				return err
			}

			old, err := r.docs.readDocument(tx, makeDocumentKey(doc.Id))
			if err != nil {
				return err
			}
			if old != nil && !old.InsertedAt.IsZero() {
				doc.InsertedAt = old.InsertedAt
			} else {
				doc.InsertedAt = now
			}
			doc.UpdatedAt = now

			if err := r.docs.writeDocument(tx, old, doc); err != nil {
				return err
			}
		}

		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.IngestionJob, error) {
	var result *core.IngestionJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// RecentJobs retrieves up to limit jobs ordered by start time, newest first.
func (r *JobRepository) RecentJobs(ctx context.Context, limit int) ([]*core.IngestionJob, error) {
	var results []*core.IngestionJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key under the date prefix
		startKey := makeJobDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC), core.ID(^uint64(0)))
		prefix := []byte(jobDatePrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && (limit <= 0 || count < limit); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var jobId core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				jobId, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			job, err := r.readJob(tx, makeJobKey(jobId))
			if err != nil {
				return err
			}
			if job != nil {
				results = append(results, job)
				count++
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// RecordOutcome atomically folds a per-document outcome into the job.
func (r *JobRepository) RecordOutcome(ctx context.Context, jobId core.ID, succeeded bool) (*core.IngestionJob, error) {
	var result *core.IngestionJob
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		job, err := r.readJob(tx, makeJobKey(jobId))
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status.Terminal() {
			// All items were already accounted for; a late redelivered
			// outcome must not disturb the terminal counters.
			return storage.ErrConflict
		}

		job.ApplyOutcome(succeeded)
		if err := core.ValidateJob(job); err != nil {
			return err
		}

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
			return err
		}
		result = job
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionJob performs a conditional job status update.
func (r *JobRepository) TransitionJob(ctx context.Context, id core.ID, from, to core.JobStatus, errMsg string) (*core.IngestionJob, error) {
	var result *core.IngestionJob
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		job, err := r.readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status != from {
			return storage.ErrConflict
		}

		job.Status = to
		if errMsg != "" {
			job.Error = errMsg
		}
		if to.Terminal() {
			job.CompletedAt = time.Now().UTC()
		}

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
			return err
		}
		result = job
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// readJob reads a job by key. Returns nil if not found.
func (r *JobRepository) readJob(tx *badger.Txn, key []byte) (*core.IngestionJob, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.IngestionJob
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}

// writeJob stores a job and keeps the start-time index in sync.
func (r *JobRepository) writeJob(tx *badger.Txn, old, job *core.IngestionJob) error {
	if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
		return err
	}
	if old == nil {
		if err := tx.Set(makeJobDateKey(job.StartedAt, job.Id), storage.MarshalID(job.Id)); err != nil {
			return err
		}
	}
	return nil
}
