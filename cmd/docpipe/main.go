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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/ingest"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/scan"
	"github.com/poiesic/docpipe/search"
	fssource "github.com/poiesic/docpipe/source/fs"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docpipe",
		Usage: "Document ingestion pipeline with incremental scanning and semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest the files of a folder and wait for processing to finish",
				Action: ingestCommand,
				Flags: append(storeFlags(), append(embeddingFlags(),
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Folder to ingest, relative to the source root",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent document workers",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for transient failures",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
				)...),
			},
			{
				Name:   "scan",
				Usage:  "Scan a folder and queue new or changed files for ingestion",
				Action: scanCommand,
				Flags: append(storeFlags(), append(embeddingFlags(),
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Folder to scan, relative to the source root",
					},
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Requeue every file regardless of stored fingerprints",
					},
					&cli.Uint64Flag{
						Name:  "resume",
						Usage: "Resume the given paused or interrupted session instead of starting a new one",
					},
				)...),
			},
			{
				Name:   "pause",
				Usage:  "Pause a running scan session",
				Action: pauseCommand,
				Flags: append(storeFlags(),
					&cli.Uint64Flag{
						Name:     "session",
						Usage:    "Scan session ID",
						Required: true,
					},
				),
			},
			{
				Name:   "watch",
				Usage:  "Periodically re-scan folders until interrupted",
				Action: watchCommand,
				Flags: append(storeFlags(), append(embeddingFlags(),
					&cli.StringSliceFlag{
						Name:     "folder",
						Usage:    "Folder to watch, relative to the source root (repeatable)",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Time between scans of each folder",
						Value: 5 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum folder walks running at once",
						Value: 2,
					},
				)...),
			},
			{
				Name:   "jobs",
				Usage:  "Show recent ingestion jobs, or one job's state and log",
				Action: jobsCommand,
				Flags: append(storeFlags(),
					&cli.Uint64Flag{
						Name:  "job",
						Usage: "Job ID to inspect; omit to list recent jobs",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum entries to show",
						Value: 20,
					},
				),
			},
			{
				Name:   "reprocess",
				Usage:  "Requeue the failed documents of a job under a new job",
				Action: reprocessCommand,
				Flags: append(storeFlags(), append(embeddingFlags(),
					&cli.Uint64Flag{
						Name:     "job",
						Usage:    "Job whose failed documents to requeue",
						Required: true,
					},
				)...),
			},
			{
				Name:   "skip",
				Usage:  "Resolve a stuck job's pending documents as skipped",
				Action: skipCommand,
				Flags: append(storeFlags(),
					&cli.Uint64Flag{
						Name:     "job",
						Usage:    "Job whose pending documents to skip",
						Required: true,
					},
				),
			},
			{
				Name:   "search",
				Usage:  "Search completed documents by semantic similarity",
				Action: searchCommand,
				Flags: append(storeFlags(), append(embeddingFlags(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Free-text query",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum matches to return",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for matches",
						Value: search.DefaultMinSimilarity,
					},
				)...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Path to the source directory tree",
			Required: true,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "embedding-token",
			Usage: "Embedding service API token",
			Value: "none",
		},
	}
}

// openSystem wires a system from the shared flags.
func openSystem(c *cli.Context, opts ...docpipe.SystemOption) (*docpipe.System, error) {
	catalog, err := fssource.NewCatalog(c.String("source"))
	if err != nil {
		return nil, fmt.Errorf("failed to open source directory: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithToken(c.String("embedding-token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}

	opts = append([]docpipe.SystemOption{docpipe.WithAIConfig(aiConfig)}, opts...)
	system, err := docpipe.NewSystem(c.String("db"), catalog, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return system, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	var systemOpts []docpipe.SystemOption
	if c.Int("pool-size") > 0 {
		systemOpts = append(systemOpts, docpipe.WithPoolSize(c.Int("pool-size")))
	}
	system, err := openSystem(c, systemOpts...)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewPipeline(
		ingest.WithRetryPolicy(c.Int("max-retries"), c.Duration("retry-delay")),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	job, err := pipeline.IngestFolder(ctx, c.String("folder"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Job %d: %d items queued\n", job.Id, job.TotalItems)
	pipeline.Wait()

	final, err := pipeline.Coordinator().JobStatus(ctx, job.Id)
	if err != nil {
		return err
	}
	printJob(final)
	return nil
}

func scanCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	scanner, err := system.NewScanner(pipeline,
		scan.WithProgressTracker(scan.NewProgressTracker(os.Stderr, 50)),
	)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	var session *core.ScanSession
	if sessionId := c.Uint64("resume"); sessionId != 0 {
		session, err = scanner.Resume(ctx, core.ID(sessionId))
	} else {
		mode := core.ScanIncremental
		if c.Bool("full") {
			mode = core.ScanFull
		}
		session, err = scanner.Run(ctx, c.String("folder"), mode)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	pipeline.Wait()
	printSession(session)
	return nil
}

func pauseCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	session, err := system.Stores().Scans.TransitionSession(
		ctx, core.ID(c.Uint64("session")), core.ScanRunning, core.ScanPaused, "")
	if err != nil {
		return fmt.Errorf("pause failed: %w", err)
	}
	printSession(session)
	return nil
}

func watchCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c, docpipe.WithSinks(notify.NewLogSink()))
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	// Pick up documents left pending by a previous interrupted run
	if _, err := pipeline.Pool().DrainPending(ctx); err != nil {
		return fmt.Errorf("failed to requeue pending documents: %w", err)
	}

	scanner, err := system.NewScanner(pipeline)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	scheduler, err := system.NewScheduler(scanner, c.Int("concurrency"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	interval := c.Duration("interval")
	for _, folder := range c.StringSlice("folder") {
		// A session left running by a crashed process holds the folder's
		// active slot and would block every scheduled scan
		session, err := scanner.RecoverActive(ctx, folder)
		if err != nil {
			return fmt.Errorf("failed to recover scan session for %q: %w", folder, err)
		}
		if session != nil {
			fmt.Fprintf(os.Stderr, "Recovered scan session %d for %q: %s\n", session.Id, folder, session.Status.String())
		}

		scheduler.AddFolder(folder, interval)
		fmt.Fprintf(os.Stderr, "Watching %q every %s\n", folder, interval)
	}
	scheduler.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Fprintln(os.Stderr, "Shutting down")
	scheduler.Stop()
	pipeline.Wait()
	return nil
}

func jobsCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	coordinator, err := system.NewCoordinator()
	if err != nil {
		return err
	}

	if jobId := c.Uint64("job"); jobId != 0 {
		job, err := coordinator.JobStatus(ctx, core.ID(jobId))
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		printJob(job)

		entries, err := coordinator.JobLogs(ctx, job.Id, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("failed to load job log: %w", err)
		}
		for _, entry := range entries {
			fmt.Printf("  %s [%s] doc=%d %s\n",
				entry.CreatedAt.Format(time.RFC3339), entry.Level.String(), entry.DocumentId, entry.Message)
		}
		return nil
	}

	jobs, err := coordinator.RecentJobs(ctx, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, job := range jobs {
		printJob(job)
	}
	return nil
}

func reprocessCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	job, err := pipeline.Coordinator().Reprocess(ctx, core.ID(c.Uint64("job")))
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}
	if err := pipeline.Pool().Dispatch(ctx, job.Id); err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Job %d: %d failed documents requeued\n", job.Id, job.TotalItems)
	pipeline.Wait()

	final, err := pipeline.Coordinator().JobStatus(ctx, job.Id)
	if err != nil {
		return err
	}
	printJob(final)
	return nil
}

func skipCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	coordinator, err := system.NewCoordinator()
	if err != nil {
		return err
	}

	skipped, err := coordinator.SkipPending(ctx, core.ID(c.Uint64("job")))
	if err != nil {
		return fmt.Errorf("skip failed: %w", err)
	}
	fmt.Printf("%d pending documents skipped\n", skipped)
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	searcher, err := system.NewSearcher(
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))),
	)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	matches, err := searcher.FindSimilar(ctx, c.String("query"), c.Int("max-hits"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for i, match := range matches {
		fmt.Printf("%2d. %.3f  %s\n", i+1, match.Score, match.Document.SourceId)
		if match.Document.Snippet != "" {
			fmt.Printf("    %s\n", strings.ReplaceAll(match.Document.Snippet, "\n", " "))
		}
	}
	if len(matches) == 0 {
		fmt.Println("No matches")
	}
	return nil
}

func printJob(job *core.IngestionJob) {
	fmt.Printf("job %d  %-9s  folder=%q  total=%d processed=%d failed=%d",
		job.Id, job.Status.String(), job.FolderRef, job.TotalItems, job.ProcessedItems, job.FailedItems)
	if job.Error != "" {
		fmt.Printf("  error=%q", job.Error)
	}
	fmt.Println()
}

func printSession(session *core.ScanSession) {
	fmt.Printf("session %d  %-9s  folder=%q  scanned=%d/%d new=%d changed=%d size=%s",
		session.Id, session.Status.String(), session.FolderRef,
		session.ScannedItems, session.TotalItems,
		session.NewItems, session.ChangedItems, formatSize(session.TotalSize))
	if session.Error != "" {
		fmt.Printf("  error=%q", session.Error)
	}
	fmt.Println()
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return strconv.FormatFloat(float64(bytes)/(1<<20), 'f', 1, 64) + "MB"
	case bytes >= 1<<10:
		return strconv.FormatFloat(float64(bytes)/(1<<10), 'f', 1, 64) + "KB"
	}
	return strconv.FormatInt(bytes, 10) + "B"
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
