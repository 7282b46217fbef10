// Package mock provides a recording test double for notify.Sink.
package mock

import (
	"sync"

	"github.com/poiesic/docpipe/core"
)

// Sink records every summary it receives.
type Sink struct {
	mu    sync.Mutex
	jobs  []*core.JobSummary
	scans []*core.ScanSummary
}

// NewSink creates an empty recording sink.
func NewSink() *Sink {
	return &Sink{}
}

// JobCompleted records the summary.
func (s *Sink) JobCompleted(summary *core.JobSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, summary)
}

// ScanCompleted records the summary.
func (s *Sink) ScanCompleted(summary *core.ScanSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, summary)
}

// JobSummaries returns a copy of the recorded job summaries.
func (s *Sink) JobSummaries() []*core.JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.JobSummary, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// ScanSummaries returns a copy of the recorded scan summaries.
func (s *Sink) ScanSummaries() []*core.ScanSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.ScanSummary, len(s.scans))
	copy(out, s.scans)
	return out
}
