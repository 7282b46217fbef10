// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// LogRepository implements storage.LogRepository for BadgerDB.
// The log is append-only: entries are written once and never touched again.
type LogRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.LogRepository = (*LogRepository)(nil)

// NewLogRepository creates a new LogRepository.
func NewLogRepository(backend *Backend) (*LogRepository, error) {
	idSeq, err := backend.GetSequence(logIDSeq)
	if err != nil {
		return nil, err
	}

	return &LogRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *LogRepository) Close() error {
	return r.idSeq.Release()
}

// Append persists a log entry with a sequence-generated ID.
func (r *LogRepository) Append(ctx context.Context, entry *core.ProcessingLogEntry) (*core.ProcessingLogEntry, error) {
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		entry.Id = core.ID(nextID)
		entry.CreatedAt = time.Now().UTC()

		value := storage.MarshalLogEntry(entry)
		if err := tx.Set(makeLogKey(entry.Id), value); err != nil {
			return err
		}
		idValue := storage.MarshalID(entry.Id)
		if entry.JobId != 0 {
			if err := tx.Set(makeLogJobKey(entry.JobId, entry.Id), idValue); err != nil {
				return err
			}
		}
		if entry.DocumentId != 0 {
			if err := tx.Set(makeLogDocKey(entry.DocumentId, entry.Id), idValue); err != nil {
				return err
			}
		}
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetLogsForJob retrieves up to limit entries for a job, in append order.
func (r *LogRepository) GetLogsForJob(ctx context.Context, jobId core.ID, limit int) ([]*core.ProcessingLogEntry, error) {
	return r.readIndexed(makePartialLogJobKey(jobId), limit)
}

// GetLogsForDocument retrieves up to limit entries for a document, in
// append order, across all jobs that processed it.
func (r *LogRepository) GetLogsForDocument(ctx context.Context, documentId core.ID, limit int) ([]*core.ProcessingLogEntry, error) {
	return r.readIndexed(makePartialLogDocKey(documentId), limit)
}

// readIndexed walks an index prefix and resolves the referenced entries.
// Index keys embed sequence-generated entry IDs, so iteration order is
// append order.
func (r *LogRepository) readIndexed(prefix []byte, limit int) ([]*core.ProcessingLogEntry, error) {
	var results []*core.ProcessingLogEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entryId core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entryId, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			item, err := tx.Get(makeLogKey(entryId))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}

			var entry *core.ProcessingLogEntry
			if err := item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalLogEntry(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, entry)
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
