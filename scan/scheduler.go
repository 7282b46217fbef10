package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Scheduler re-scans registered folders on independent cadences.
// Each folder gets its own ticker; session walks run on a shared pool so
// folders scan concurrently. A tick or trigger on a folder whose previous
// session is still live is dropped, keeping cadences independent of walk
// duration.
type Scheduler struct {
	scanner *Scanner
	pool    *ants.Pool
	mode    core.ScanMode
	logger  *slog.Logger

	mu      sync.Mutex
	folders map[string]time.Duration
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler over the given scanner.
// concurrency bounds how many folder walks run at once.
func NewScheduler(scanner *Scanner, concurrency int) (*Scheduler, error) {
	if scanner == nil {
		return nil, errors.New("scanner required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scanner: scanner,
		pool:    pool,
		mode:    core.ScanIncremental,
		folders: make(map[string]time.Duration),
		logger:  slog.Default().With("component", "scheduler"),
	}, nil
}

// AddFolder registers a folder for periodic scanning at the given interval.
// Registering an existing folder updates its interval on the next Start.
func (s *Scheduler) AddFolder(folderRef string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folderRef] = interval
}

// Start launches one scan loop per registered folder.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for folderRef, interval := range s.folders {
		s.wg.Add(1)
		go s.loop(ctx, folderRef, interval)
	}
}

// Stop cancels the scan loops and waits for in-flight walks to settle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Release()
}

// Trigger starts a scan of a registered folder immediately. The walk runs
// asynchronously on the pool; a folder that is already scanning skips the
// trigger.
func (s *Scheduler) Trigger(ctx context.Context, folderRef string) error {
	s.mu.Lock()
	_, ok := s.folders[folderRef]
	s.mu.Unlock()
	if !ok {
		return ErrFolderNotRegistered
	}
	return s.submit(ctx, folderRef)
}

// loop ticks a single folder's cadence.
func (s *Scheduler) loop(ctx context.Context, folderRef string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.submit(ctx, folderRef); err != nil && err != storage.ErrSessionActive {
				s.logger.Error("failed to start scheduled scan", "folder", folderRef, "err", err)
			}
		}
	}
}

// submit hands a folder walk to the pool.
func (s *Scheduler) submit(ctx context.Context, folderRef string) error {
	return s.pool.Submit(func() {
		_, err := s.scanner.Run(ctx, folderRef, s.mode)
		if err == storage.ErrSessionActive {
			// Previous session still live; skip this cycle
			s.logger.Debug("scan already active, skipping", "folder", folderRef)
			return
		}
		if err != nil {
			s.logger.Error("scheduled scan failed", "folder", folderRef, "err", err)
		}
	})
}
