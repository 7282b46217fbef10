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


package docpipe

import (
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/ingest"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/scan"
	"github.com/poiesic/docpipe/search"
	"github.com/poiesic/docpipe/source"
	"github.com/poiesic/docpipe/storage/badger"
)

// System wires the store, the embedding provider and the notification
// fan-out for one source catalog. It is the embedding surface: construct
// one, then create pipelines, scanners and searchers from it.
type System struct {
	stores   *badger.Stores
	catalog  source.Catalog
	provider ai.Provider
	notifier *notify.Notifier
	poolSize int
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	sinks    []notify.Sink
	poolSize int
	inMemory bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithProvider sets an explicit embedding provider, bypassing the
// OpenAI-compatible default. Used for testing.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithSinks registers completion notification sinks.
func WithSinks(sinks ...notify.Sink) SystemOption {
	return func(o *systemOptions) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithPoolSize sets the document worker pool size.
func WithPoolSize(size int) SystemOption {
	return func(o *systemOptions) {
		o.poolSize = size
	}
}

// WithInMemoryStore uses an in-memory store instead of a directory.
// Used for testing.
func WithInMemoryStore() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewSystem opens the store at filePath and wires a system over catalog.
func NewSystem(filePath string, catalog source.Catalog, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stores, err := badger.OpenStores(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			stores.Close()
			return nil, err
		}
	}

	return &System{
		stores:   stores,
		catalog:  catalog,
		provider: provider,
		notifier: notify.NewNotifier(options.sinks...),
		poolSize: options.poolSize,
		logger:   slog.Default(),
	}, nil
}

// Close releases the provider and the store.
func (s *System) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing embedding provider", "err", err)
	}
	if err := s.stores.Close(); err != nil {
		s.logger.Error("error closing stores", "err", err)
		return err
	}
	return nil
}

// Stores exposes the underlying repositories.
func (s *System) Stores() *badger.Stores {
	return s.stores
}

// Catalog returns the source catalog the system reads from.
func (s *System) Catalog() source.Catalog {
	return s.catalog
}

// NewCoordinator creates a job coordinator wired to the notifier.
func (s *System) NewCoordinator() (*ingest.Coordinator, error) {
	return ingest.NewCoordinator(s.stores.Jobs, s.stores.Documents, s.stores.Logs, s.notifier)
}

// NewPipeline creates an ingestion pipeline over the system's catalog.
func (s *System) NewPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	coordinator, err := s.NewCoordinator()
	if err != nil {
		return nil, err
	}
	if s.poolSize > 0 {
		opts = append([]ingest.Option{ingest.WithPoolSize(s.poolSize)}, opts...)
	}
	return ingest.NewPipeline(s.catalog, s.provider.Embedder(), s.stores.Documents, coordinator, opts...)
}

// NewScanner creates a scanner that queues work through pipeline.
func (s *System) NewScanner(pipeline *ingest.Pipeline, opts ...scan.ScannerOption) (*scan.Scanner, error) {
	opts = append([]scan.ScannerOption{scan.WithSink(s.notifier)}, opts...)
	return scan.NewScanner(s.catalog, s.stores.Documents, s.stores.Scans, pipeline, opts...)
}

// NewScheduler creates a periodic scan scheduler over scanner.
func (s *System) NewScheduler(scanner *scan.Scanner, concurrency int) (*scan.Scheduler, error) {
	return scan.NewScheduler(scanner, concurrency)
}

// NewSearcher creates a semantic searcher over completed documents.
func (s *System) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.stores.Documents, s.provider.Embedder(), opts...)
}
