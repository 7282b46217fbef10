package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ScanRepository implements storage.ScanRepository for BadgerDB.
type ScanRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ScanRepository = (*ScanRepository)(nil)

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(backend *Backend) (*ScanRepository, error) {
	idSeq, err := backend.GetSequence(sessionIDSeq)
	if err != nil {
		return nil, err
	}

	return &ScanRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ScanRepository) Close() error {
	return r.idSeq.Release()
}

// CreateSession persists a new session, claiming the folder's active slot.
// Two concurrent creators for the same folder conflict on the slot key, so
// exactly one wins; the loser re-reads the slot and fails with
// ErrSessionActive.
func (r *ScanRepository) CreateSession(ctx context.Context, session *core.ScanSession) (*core.ScanSession, error) {
	if err := core.ValidateSession(session); err != nil {
		return nil, err
	}

	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		activeKey := makeActiveSessionKey(session.FolderRef)

		// A stale slot left by a crashed process points at a terminal
		// session; only a live one blocks creation.
		active, err := r.activeSession(tx, activeKey)
		if err != nil {
			return err
		}
		if active != nil {
			return storage.ErrSessionActive
		}

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
		session.Id = core.ID(nextID)
		session.StartedAt = time.Now().UTC()
		if session.Status == 0 {
			session.Status = core.ScanPending
		}

		if err := tx.Set(makeSessionKey(session.Id), storage.MarshalSession(session)); err != nil {
			return err
		}
		if err := tx.Set(makeSessionDateKey(session.StartedAt, session.Id), storage.MarshalID(session.Id)); err != nil {
			return err
		}
		if err := tx.Set(activeKey, storage.MarshalID(session.Id)); err != nil {
			return err
		}
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *ScanRepository) GetSession(ctx context.Context, id core.ID) (*core.ScanSession, error) {
	var result *core.ScanSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readSession(tx, makeSessionKey(id))
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

// ActiveSession retrieves the folder's current non-terminal session.
func (r *ScanRepository) ActiveSession(ctx context.Context, folderRef string) (*core.ScanSession, error) {
	var result *core.ScanSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.activeSession(tx, makeActiveSessionKey(folderRef))
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

// RecentSessions retrieves up to limit sessions, newest first.
func (r *ScanRepository) RecentSessions(ctx context.Context, limit int) ([]*core.ScanSession, error) {
	var results []*core.ScanSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makeSessionDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC), core.ID(^uint64(0)))
		prefix := []byte(sessionDatePrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && (limit <= 0 || count < limit); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var sessionId core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				sessionId, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			session, err := r.readSession(tx, makeSessionKey(sessionId))
			if err != nil {
				return err
			}
			if session != nil {
				results = append(results, session)
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

// UpdateSession applies mutate to the session row inside a transaction.
func (r *ScanRepository) UpdateSession(ctx context.Context, id core.ID, mutate func(*core.ScanSession) error) (*core.ScanSession, error) {
	var result *core.ScanSession
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		session, err := r.readSession(tx, makeSessionKey(id))
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		wasTerminal := session.Status.Terminal()
		if err := mutate(session); err != nil {
			return err
		}
		if err := core.ValidateSession(session); err != nil {
			return err
		}
		if session.Status.Terminal() && session.CompletedAt.IsZero() {
			session.CompletedAt = time.Now().UTC()
		}

		if err := tx.Set(makeSessionKey(session.Id), storage.MarshalSession(session)); err != nil {
			return err
		}
		// Terminal sessions release the folder's active slot
		if session.Status.Terminal() && !wasTerminal {
			if err := tx.Delete(makeActiveSessionKey(session.FolderRef)); err != nil {
				return err
			}
		}
		result = session
		return tx.Commit()
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionSession performs a conditional session status update.
func (r *ScanRepository) TransitionSession(ctx context.Context, id core.ID, from, to core.ScanStatus, errMsg string) (*core.ScanSession, error) {
	return r.UpdateSession(ctx, id, func(session *core.ScanSession) error {
		if session.Status != from {
			return storage.ErrConflict
		}
		session.Status = to
		if errMsg != "" {
			session.Error = errMsg
		}
		return nil
	})
}

// PutProgress records (or overwrites) the progress entry for an item.
func (r *ScanRepository) PutProgress(ctx context.Context, entry *core.ScanProgressEntry) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		entry.ProcessedAt = time.Now().UTC()
		key := makeProgressKey(entry.SessionId, entry.ItemRef)
		if err := tx.Set(key, storage.MarshalProgress(entry)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetProgress retrieves the progress entry for an item within a session.
func (r *ScanRepository) GetProgress(ctx context.Context, sessionId core.ID, itemRef string) (*core.ScanProgressEntry, error) {
	var result *core.ScanProgressEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProgressKey(sessionId, itemRef))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalProgress(val)
			return err
		})
	}, false)
	return result, err
}

// SessionProgress retrieves all progress entries for a session.
func (r *ScanRepository) SessionProgress(ctx context.Context, sessionId core.ID) ([]*core.ScanProgressEntry, error) {
	var results []*core.ScanProgressEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialProgressKey(sessionId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.ScanProgressEntry
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalProgress(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, entry)
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// readSession reads a session by key. Returns nil if not found.
func (r *ScanRepository) readSession(tx *badger.Txn, key []byte) (*core.ScanSession, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var session *core.ScanSession
	err = item.Value(func(val []byte) error {
		var err error
		session, err = storage.UnmarshalSession(val)
		return err
	})
	return session, err
}

// activeSession resolves an active-slot key to its live session.
// Returns nil when the slot is empty or points at a terminal session.
func (r *ScanRepository) activeSession(tx *badger.Txn, activeKey []byte) (*core.ScanSession, error) {
	item, err := tx.Get(activeKey)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var sessionId core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		sessionId, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return nil, err
	}

	session, err := r.readSession(tx, makeSessionKey(sessionId))
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status.Terminal() {
		return nil, nil
	}
	return session, nil
}
