// Package notify delivers completion summaries to interested observers.
// Delivery is fire-and-forget: a slow or failing sink never blocks the
// pipeline, and no delivery guarantee is made beyond best effort.
package notify

import (
	"log/slog"

	"github.com/poiesic/docpipe/core"
)

// Sink receives completion summaries.
// Implementations must be safe for concurrent use.
type Sink interface {
	// JobCompleted is invoked once when an ingestion job reaches a
	// terminal status.
	JobCompleted(summary *core.JobSummary)

	// ScanCompleted is invoked once when a scan session reaches a
	// terminal status.
	ScanCompleted(summary *core.ScanSummary)
}

// Notifier fans summaries out to sinks asynchronously.
type Notifier struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewNotifier creates a notifier over the given sinks.
func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{
		sinks:  sinks,
		logger: slog.Default().With("component", "notifier"),
	}
}

// JobCompleted dispatches a job summary to every sink without blocking.
func (n *Notifier) JobCompleted(summary *core.JobSummary) {
	for _, sink := range n.sinks {
		go sink.JobCompleted(summary)
	}
}

// ScanCompleted dispatches a scan summary to every sink without blocking.
func (n *Notifier) ScanCompleted(summary *core.ScanSummary) {
	for _, sink := range n.sinks {
		go sink.ScanCompleted(summary)
	}
}

// LogSink writes completion summaries to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink over the default logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "notify")}
}

// JobCompleted logs the job summary.
func (s *LogSink) JobCompleted(summary *core.JobSummary) {
	s.logger.Info("ingestion job finished",
		"job", summary.JobId,
		"folder", summary.FolderRef,
		"status", summary.Status.String(),
		"total", summary.TotalItems,
		"processed", summary.ProcessedItems,
		"failed", summary.FailedItems,
		"duration", summary.Duration,
	)
}

// ScanCompleted logs the scan summary.
func (s *LogSink) ScanCompleted(summary *core.ScanSummary) {
	s.logger.Info("scan session finished",
		"session", summary.SessionId,
		"folder", summary.FolderRef,
		"status", summary.Status.String(),
		"total", summary.TotalItems,
		"scanned", summary.ScannedItems,
		"new", summary.NewItems,
		"changed", summary.ChangedItems,
		"duration", summary.Duration,
	)
}
