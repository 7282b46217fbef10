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


// Package scan walks source folders, diffs what it finds against stored
// document fingerprints, and queues new or changed files for ingestion.
//
// A scan session is a durable, per-item progress log over one walk. The
// walk has two phases: a counting pass that establishes a stable
// denominator, then a classification pass that records one progress entry
// per item. Interrupted sessions resume from the log and converge on the
// same final counts an uninterrupted run would have produced.
package scan

import (
	"context"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/ingest"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/source"
	"github.com/poiesic/docpipe/storage"
)

// Scanner runs scan sessions over source folders.
type Scanner struct {
	catalog  source.Catalog
	docs     storage.DocumentRepository
	scans    storage.ScanRepository
	pipeline *ingest.Pipeline
	registry *extract.Registry
	sink     notify.Sink
	tracker  *ProgressTracker
	logger   *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithSink sets the completion notification sink.
func WithSink(sink notify.Sink) ScannerOption {
	return func(s *Scanner) {
		s.sink = sink
	}
}

// WithProgressTracker reports per-item walk progress to a tracker.
func WithProgressTracker(tracker *ProgressTracker) ScannerOption {
	return func(s *Scanner) {
		s.tracker = tracker
	}
}

// NewScanner creates a scanner.
func NewScanner(catalog source.Catalog, docs storage.DocumentRepository, scans storage.ScanRepository, pipeline *ingest.Pipeline, opts ...ScannerOption) (*Scanner, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if scans == nil {
		return nil, ErrScanRepositoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	s := &Scanner{
		catalog:  catalog,
		docs:     docs,
		scans:    scans,
		pipeline: pipeline,
		registry: pipeline.Registry(),
		logger:   slog.Default().With("component", "scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts a new scan session over a folder. It fails with
// storage.ErrSessionActive when the folder already has a live session.
// The returned session reflects the state at return: completed, failed,
// or paused if a pause request landed mid-walk.
func (s *Scanner) Run(ctx context.Context, folderRef string, mode core.ScanMode) (*core.ScanSession, error) {
	session, err := s.scans.CreateSession(ctx, &core.ScanSession{
		FolderRef: folderRef,
		Mode:      mode,
		Status:    core.ScanRunning,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scan session started", "session", session.Id, "folder", folderRef, "mode", mode.String())
	return s.walk(ctx, session, nil)
}

// Resume continues a paused or interrupted session. The walk skips every
// item already present in the session's progress log, so the final counts
// match an uninterrupted run.
func (s *Scanner) Resume(ctx context.Context, sessionId core.ID) (*core.ScanSession, error) {
	session, err := s.scans.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status != core.ScanPaused && session.Status != core.ScanRunning {
		return nil, ErrSessionNotResumable
	}

	if session.Status == core.ScanPaused {
		session, err = s.scans.TransitionSession(ctx, sessionId, core.ScanPaused, core.ScanRunning, "")
		if err != nil {
			return nil, err
		}
	}

	entries, err := s.scans.SessionProgress(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	visited := make(map[string]*core.ScanProgressEntry, len(entries))
	for _, entry := range entries {
		visited[entry.ItemRef] = entry
	}

	s.logger.Info("scan session resumed", "session", session.Id, "folder", session.FolderRef, "visited", len(visited))
	return s.walk(ctx, session, visited)
}

// Pause requests a running session to stop dequeuing items. The walker
// checks between items; the in-flight item finishes first.
func (s *Scanner) Pause(ctx context.Context, sessionId core.ID) (*core.ScanSession, error) {
	return s.scans.TransitionSession(ctx, sessionId, core.ScanRunning, core.ScanPaused, "")
}

// RecoverActive resumes a session left running by a crashed process.
// Such a session holds the folder's active slot and would block every
// later scan of the folder. Returns (nil, nil) when the folder has no
// session to recover; a deliberately paused session is left alone.
func (s *Scanner) RecoverActive(ctx context.Context, folderRef string) (*core.ScanSession, error) {
	session, err := s.scans.ActiveSession(ctx, folderRef)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Status != core.ScanRunning {
		return nil, nil
	}

	s.logger.Info("recovering interrupted scan session", "session", session.Id, "folder", folderRef)
	return s.Resume(ctx, session.Id)
}

// walk performs both phases of a scan. visited holds the progress entries
// of a resumed session, nil for a fresh one.
func (s *Scanner) walk(ctx context.Context, session *core.ScanSession, visited map[string]*core.ScanProgressEntry) (*core.ScanSession, error) {
	// Phase 1: establish the denominator. An unreachable root is a
	// foundational failure: nothing useful can happen.
	total, totalSize, err := s.count(ctx, session.FolderRef)
	if err != nil {
		s.logger.Error("scan source unreachable", "session", session.Id, "folder", session.FolderRef, "err", err)
		failed, terr := s.scans.TransitionSession(ctx, session.Id, core.ScanRunning, core.ScanFailed, err.Error())
		if terr != nil {
			return session, terr
		}
		s.notifyScan(failed)
		return failed, err
	}

	session, err = s.scans.UpdateSession(ctx, session.Id, func(ss *core.ScanSession) error {
		ss.TotalItems = total
		ss.TotalSize = totalSize
		return nil
	})
	if err != nil {
		return session, err
	}

	if s.tracker != nil {
		s.tracker.Start(total)
		s.tracker.Update(session.ScannedItems)
	}

	// Phase 2: classify
	w := &walkState{session: session, visited: visited}
	paused, err := s.classifyFolder(ctx, w, session.FolderRef)
	if err != nil {
		failed, terr := s.scans.TransitionSession(ctx, w.session.Id, core.ScanRunning, core.ScanFailed, err.Error())
		if terr != nil {
			return w.session, terr
		}
		s.notifyScan(failed)
		return failed, err
	}
	if paused {
		s.logger.Info("scan session paused", "session", w.session.Id, "scanned", w.session.ScannedItems)
		return s.scans.GetSession(ctx, w.session.Id)
	}

	// All new and changed files land in exactly one job
	if len(w.batch) > 0 {
		job, err := s.pipeline.IngestItems(ctx, w.session.FolderRef, w.batch)
		if err != nil {
			failed, terr := s.scans.TransitionSession(ctx, w.session.Id, core.ScanRunning, core.ScanFailed, err.Error())
			if terr != nil {
				return w.session, terr
			}
			s.notifyScan(failed)
			return failed, err
		}
		s.logger.Info("scan queued ingestion job", "session", w.session.Id, "job", job.Id, "items", job.TotalItems)
	}

	done, err := s.scans.TransitionSession(ctx, w.session.Id, core.ScanRunning, core.ScanCompleted, "")
	if err != nil {
		return w.session, err
	}
	if s.tracker != nil {
		s.tracker.Finish()
	}
	s.logger.Info("scan session completed",
		"session", done.Id, "scanned", done.ScannedItems,
		"new", done.NewItems, "changed", done.ChangedItems)
	s.notifyScan(done)
	return done, nil
}

// walkState carries the mutable state of one classification pass.
type walkState struct {
	session *core.ScanSession
	visited map[string]*core.ScanProgressEntry
	batch   []*source.Item
}

// count recursively counts reachable items and their total size.
// Unreachable subfolders are skipped; only the root must be listable.
func (s *Scanner) count(ctx context.Context, folderRef string) (int, int64, error) {
	items, err := s.catalog.List(ctx, folderRef)
	if err != nil {
		return 0, 0, err
	}

	total := 0
	var totalSize int64
	for _, item := range items {
		total++
		totalSize += item.Size
		if item.IsFolder {
			subTotal, subSize, err := s.count(ctx, item.ID)
			if err != nil {
				s.logger.Warn("subfolder unreadable during count", "folder", item.ID, "err", err)
				continue
			}
			total += subTotal
			totalSize += subSize
		}
	}
	return total, totalSize, nil
}

// classifyFolder walks one folder depth-first, classifying each item.
// Returns true when a pause request stopped the walk.
func (s *Scanner) classifyFolder(ctx context.Context, w *walkState, folderRef string) (bool, error) {
	items, err := s.catalog.List(ctx, folderRef)
	if err != nil {
		// The root was listable moments ago in phase 1; treat a root
		// failure here as foundational, a subfolder one as per-item
		if folderRef == w.session.FolderRef {
			return false, err
		}
		s.logger.Warn("subfolder unreadable", "folder", folderRef, "err", err)
		return false, nil
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		// Honor pause requests between items
		current, err := s.scans.GetSession(ctx, w.session.Id)
		if err != nil {
			return false, err
		}
		if current.Status == core.ScanPaused {
			return true, nil
		}

		if prior, ok := w.visited[item.ID]; ok {
			// Already visited before the interruption. Items that were
			// classified for ingestion still need a seat in this run's
			// job, since the interrupted run never created one.
			if prior.Status == core.ItemProcessed && !item.IsFolder {
				w.batch = append(w.batch, item)
			}
			if item.IsFolder {
				if paused, err := s.classifyFolder(ctx, w, item.ID); err != nil || paused {
					return paused, err
				}
			}
			continue
		}

		if err := s.classifyItem(ctx, w, item); err != nil {
			return false, err
		}

		if item.IsFolder {
			if paused, err := s.classifyFolder(ctx, w, item.ID); err != nil || paused {
				return paused, err
			}
		}
	}
	return false, nil
}

// classifyItem records one item's progress entry and folds it into the
// session counters.
func (s *Scanner) classifyItem(ctx context.Context, w *walkState, item *source.Item) error {
	entry := &core.ScanProgressEntry{
		SessionId: w.session.Id,
		ItemRef:   item.ID,
		Path:      item.ID,
		Size:      item.Size,
		ItemType:  core.ItemFile,
		Status:    core.ItemScanned,
	}
	if item.IsFolder {
		entry.ItemType = core.ItemFolder
	}

	isNew, isChanged := false, false
	if !item.IsFolder && s.registry.Supported(item.MimeType) {
		stored, err := s.docs.GetDocumentBySource(ctx, item.ID)
		switch {
		case err == storage.ErrNotFound:
			isNew = true
		case err != nil:
			// Store trouble for one item doesn't sink the session
			s.logger.Warn("failed to look up document", "item", item.ID, "err", err)
			entry.Status = core.ItemFailed
			entry.Error = err.Error()
		case w.session.Mode == core.ScanFull:
			isChanged = true
		case stored.VersionMarker != item.VersionMarker:
			isChanged = true
		}
	}

	if isNew || isChanged {
		entry.Status = core.ItemProcessed
		w.batch = append(w.batch, item)
	}

	if err := s.scans.PutProgress(ctx, entry); err != nil {
		return err
	}

	session, err := s.scans.UpdateSession(ctx, w.session.Id, func(ss *core.ScanSession) error {
		ss.ScannedItems++
		// The source may have grown between the counting and
		// classification passes; the denominator follows
		if ss.ScannedItems > ss.TotalItems {
			ss.TotalItems = ss.ScannedItems
		}
		if isNew {
			ss.NewItems++
		}
		if isChanged {
			ss.ChangedItems++
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.session = session

	if s.tracker != nil {
		s.tracker.Increment(1)
	}
	return nil
}

// notifyScan emits the completion notification, if anyone listens.
func (s *Scanner) notifyScan(session *core.ScanSession) {
	if s.sink != nil {
		s.sink.ScanCompleted(session.Summary())
	}
}
