// Package storage defines the persistence interfaces for the ingestion
// pipeline: documents, jobs, the append-only processing log, and scan
// sessions with their per-item progress entries.
//
// All shared state lives in the store. Status changes go through conditional
// (compare-and-swap) updates keyed on the expected prior status, so lost
// updates cannot occur under concurrent workers; backends retry their own
// optimistic-transaction conflicts internally and surface ErrConflict only
// when the expected prior state genuinely no longer holds.
package storage
