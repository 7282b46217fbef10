package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// Close implements storage.Repository. Documents hold no sequence.
func (r *DocumentRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// PutDocuments overwrites document rows keyed by their content-derived IDs.
func (r *DocumentRepository) PutDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := core.ValidateDocument(doc); err != nil {
				return err
			}
			if doc.Id == 0 {
				doc.Id = core.IDFromContent(doc.SourceId)
			}

			old, err := r.readDocument(tx, makeDocumentKey(doc.Id))
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if old != nil && !old.InsertedAt.IsZero() {
				doc.InsertedAt = old.InsertedAt
			} else {
				doc.InsertedAt = now
			}
			doc.UpdatedAt = now

			if err := r.writeDocument(tx, old, doc); err != nil {
				return err
			}
		}
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, makeDocumentKey(id))
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

// GetDocumentBySource retrieves a document by its source item reference.
// Document IDs derive deterministically from source refs, so this is a
// direct key lookup rather than an index walk.
func (r *DocumentRepository) GetDocumentBySource(ctx context.Context, sourceId string) (*core.Document, error) {
	return r.GetDocument(ctx, core.IDFromContent(sourceId))
}

// GetDocumentsByJob retrieves all documents owned by a job.
func (r *DocumentRepository) GetDocumentsByJob(ctx context.Context, jobId core.ID) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentJobKey(jobId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var docId core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				docId, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := r.readDocument(tx, makeDocumentKey(docId))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetDocumentsByStatus retrieves up to limit documents in the given status.
func (r *DocumentRepository) GetDocumentsByStatus(ctx context.Context, status core.DocumentStatus, limit int) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			}); err != nil {
				return err
			}
			if doc == nil || doc.Status != status {
				continue
			}
			results = append(results, doc)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Transition performs a conditional status update.
// Two workers racing on the same row either conflict at commit (and the
// loser's retry re-reads the new status) or read the changed status
// directly; either way exactly one caller observes success.
func (r *DocumentRepository) Transition(ctx context.Context, id core.ID, from, to core.DocumentStatus, mutate func(*core.Document)) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Status != from {
			return storage.ErrConflict
		}

		old := *doc
		doc.Status = to
		if mutate != nil {
			mutate(doc)
		}
		doc.UpdatedAt = time.Now().UTC()

		if err := r.writeDocument(tx, &old, doc); err != nil {
			return err
		}
		result = doc
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// readDocument reads a document by key. Returns nil if not found.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// writeDocument stores a document and keeps the job index in sync.
// old may be nil for first writes.
func (r *DocumentRepository) writeDocument(tx *badger.Txn, old, doc *core.Document) error {
	if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
		return err
	}

	if old != nil && old.JobId != 0 && old.JobId != doc.JobId {
		if err := tx.Delete(makeDocumentJobKey(old.JobId, doc.Id)); err != nil {
			return err
		}
	}
	if doc.JobId != 0 && (old == nil || old.JobId != doc.JobId) {
		if err := tx.Set(makeDocumentJobKey(doc.JobId, doc.Id), storage.MarshalID(doc.Id)); err != nil {
			return err
		}
	}
	return nil
}
