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
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ronbun"
	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/blob"
	s3blob "github.com/poiesic/ronbun/blob/s3"
	"github.com/poiesic/ronbun/config"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/ingestion"
	"github.com/poiesic/ronbun/reindex"
	"github.com/poiesic/ronbun/search"
	"github.com/poiesic/ronbun/storage"
)

func main() {
	app := &cli.App{
		Name:  "ronbun",
		Usage: "arXiv paper ingestion and hybrid retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides RONBUN_DB_PATH)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Consume the ingestion queue and run the scheduled sweep",
				Action: workerCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Submit papers for ingestion by arXiv ID or search query",
				ArgsUsage: "[arxiv-id ...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "arXiv search query to resolve into paper IDs",
					},
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "Submit and exit without waiting for the pipeline to finish",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Hybrid keyword and semantic search over ready papers",
				ArgsUsage: "query...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict results to a category (substring match)",
					},
					&cli.IntFlag{
						Name:  "year-from",
						Usage: "Earliest publication year",
					},
					&cli.IntFlag{
						Name:  "year-to",
						Usage: "Latest publication year",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
				},
			},
			{
				Name:      "extractions",
				Usage:     "Search extracted methods, datasets, results and more",
				ArgsUsage: "query...",
				Action:    extractionsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict to one extraction type (method, dataset, baseline, metric, result, contribution, limitation)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
				},
			},
			{
				Name:      "related",
				Usage:     "Find papers related by citations, shared entities or authors",
				ArgsUsage: "paper-id",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Link types to follow (citation, cited_by, shared_method, shared_dataset, shared_author)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List papers",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (queued, metadata, parsed, extracted, ready, failed)",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Filter by exact category",
					},
					&cli.StringFlag{
						Name:  "cursor",
						Usage: "Paper ID to continue listing after",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Page size",
						Value:   20,
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Show one paper with its sections, extractions and citations",
				ArgsUsage: "paper-id",
				Action:    showCommand,
			},
			{
				Name:   "status",
				Usage:  "Show paper counts per pipeline status",
				Action: statusCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Reembed every ready paper's sections",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of papers to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N papers",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openDatabase wires a Database from the environment configuration, with
// the --db flag taking precedence over RONBUN_DB_PATH.
func openDatabase(c *cli.Context) (*ronbun.Database, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.EmbeddingHost),
		ai.WithExtractorHost(cfg.ExtractorHost),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
		ai.WithExtractorModel(cfg.ExtractorModel),
	)

	opts := []ronbun.DatabaseOption{ronbun.WithAIConfig(aiConfig)}

	if cfg.BlobBackend == "s3" {
		blobs, err := s3blob.NewStore(context.Background(), s3blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting blob store: %w", err)
		}
		opts = append(opts, ronbun.WithBlobStore(blobs))
	} else if cfg.BlobDir != "" {
		blobs, err := blob.NewFSStore(cfg.BlobDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening blob store: %w", err)
		}
		opts = append(opts, ronbun.WithBlobStore(blobs))
	}

	db, err := ronbun.NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, cfg, nil
}

func workerCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, q, err := db.NewIngestionPipeline(cfg.QueueWorkers)
	if err != nil {
		return err
	}
	defer q.Close()

	var sweeper *ingestion.Sweeper
	if sets := cfg.Sets(); len(sets) > 0 {
		sweeper, err = db.NewSweeper(pipeline, sets,
			ingestion.WithSweepSchedule(cfg.SweepSchedule))
		if err != nil {
			return err
		}
		if err := sweeper.Start(); err != nil {
			return err
		}
		slog.Info("sweep scheduled", "schedule", cfg.SweepSchedule, "sets", sets)
	}

	slog.Info("worker running", "workers", cfg.QueueWorkers)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	ids := c.Args().Slice()
	query := c.String("query")
	if len(ids) == 0 && query == "" {
		return fmt.Errorf("give at least one arXiv ID or --query")
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, q, err := db.NewIngestionPipeline(cfg.QueueWorkers)
	if err != nil {
		return err
	}
	defer q.Close()

	ctx := context.Background()
	entries, err := pipeline.SubmitBatch(ctx, ingestion.BatchRequest{
		ArxivIDs: ids,
		Query:    query,
	})
	if err != nil {
		return err
	}

	submitted := 0
	for _, entry := range entries {
		if entry.Err != nil {
			fmt.Printf("%-14s  error: %v\n", entry.ArxivID, entry.Err)
			continue
		}
		submitted++
		fmt.Printf("%-14s  %s\n", entry.Result.ArxivID, entry.Result.Status)
	}

	if submitted > 0 && !c.Bool("no-wait") {
		fmt.Printf("processing %d papers...\n", submitted)
		q.Drain()
		fmt.Println("done")
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("give a search query")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.SearchPapers(context.Background(), search.PaperQuery{
		Query:    query,
		Category: c.String("category"),
		YearFrom: c.Int("year-from"),
		YearTo:   c.Int("year-to"),
		Limit:    c.Int("limit"),
	})
	if err != nil {
		return err
	}

	for i, result := range results {
		fmt.Printf("%2d. [%s] %s (%.4f)\n", i+1, result.Paper.ArxivID, result.Paper.Title, result.Score)
		if len(result.Paper.Authors) > 0 {
			fmt.Printf("    %s\n", strings.Join(result.Paper.Authors, ", "))
		}
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}

func extractionsCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("give a search query")
	}

	var extractionType core.ExtractionType
	if name := c.String("type"); name != "" {
		parsed, ok := core.ParseExtractionType(name)
		if !ok {
			return fmt.Errorf("unknown extraction type %q", name)
		}
		extractionType = parsed
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.SearchExtractions(context.Background(), query, extractionType, c.Int("limit"))
	if err != nil {
		return err
	}

	for _, result := range results {
		fmt.Printf("%-12s %-30s %s [%s]\n",
			result.Extraction.Type, result.Extraction.Name, result.PaperTitle, result.ArxivID)
		if result.Extraction.Detail != "" {
			fmt.Printf("             %s\n", result.Extraction.Detail)
		}
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}

func relatedCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("give exactly one paper ID")
	}

	var linkTypes []search.LinkType
	for _, name := range c.StringSlice("type") {
		linkTypes = append(linkTypes, search.LinkType(name))
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.FindRelated(context.Background(), c.Args().First(), linkTypes, c.Int("limit"))
	if err != nil {
		return err
	}

	for _, result := range results {
		line := fmt.Sprintf("%-14s %-30s [%s]", result.Paper.ArxivID, result.LinkType, result.Paper.Title)
		if result.EntityName != "" {
			line += fmt.Sprintf(" via %q", result.EntityName)
		}
		fmt.Println(line)
	}
	if len(results) == 0 {
		fmt.Println("no related papers")
	}
	return nil
}

func listCommand(c *cli.Context) error {
	var status core.Status
	if name := c.String("status"); name != "" {
		parsed, ok := core.ParseStatus(name)
		if !ok {
			return fmt.Errorf("unknown status %q", name)
		}
		status = parsed
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	papers, hasMore, err := db.Store().ListPapers(context.Background(), storage.ListPapersQuery{
		Status:   status,
		Category: c.String("category"),
		Cursor:   c.String("cursor"),
		Limit:    c.Int("limit"),
	})
	if err != nil {
		return err
	}

	for _, paper := range papers {
		fmt.Printf("%-14s %-10s %s\n", paper.ArxivID, paper.Status, paper.Title)
	}
	if hasMore && len(papers) > 0 {
		fmt.Printf("more available, continue with --cursor %s\n", papers[len(papers)-1].ID)
	}
	return nil
}

func showCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("give exactly one paper ID")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	store := db.Store()

	paper, err := store.GetPaper(ctx, c.Args().First())
	if err != nil {
		// Fall back to the arXiv ID.
		normalized, normErr := core.NormalizeArxivID(c.Args().First())
		if normErr != nil {
			return err
		}
		paper, err = store.GetPaperByArxivID(ctx, normalized)
		if err != nil {
			return err
		}
	}

	fmt.Printf("%s  [%s]\n", paper.Title, paper.ArxivID)
	fmt.Printf("status:     %s\n", paper.Status)
	if paper.Error != "" {
		fmt.Printf("error:      %s\n", paper.Error)
	}
	if len(paper.Authors) > 0 {
		fmt.Printf("authors:    %s\n", strings.Join(paper.Authors, ", "))
	}
	if len(paper.Categories) > 0 {
		fmt.Printf("categories: %s\n", strings.Join(paper.Categories, " "))
	}
	if !paper.PublishedAt.IsZero() {
		fmt.Printf("published:  %s\n", paper.PublishedAt.Format("2006-01-02"))
	}
	if paper.Abstract != "" {
		fmt.Printf("\n%s\n", paper.Abstract)
	}

	sections, err := store.GetSectionsByPaper(ctx, paper.ID)
	if err != nil {
		return err
	}
	if len(sections) > 0 {
		fmt.Println("\nsections:")
		for _, section := range sections {
			indent := section.Level - 1
			if indent < 0 {
				indent = 0
			}
			fmt.Printf("  %s%s\n", strings.Repeat("  ", indent), section.Heading)
		}
	}

	extractions, err := store.GetExtractionsByPaper(ctx, paper.ID)
	if err != nil {
		return err
	}
	if len(extractions) > 0 {
		fmt.Println("\nextractions:")
		for _, extraction := range extractions {
			fmt.Printf("  %-12s %s\n", extraction.Type, extraction.Name)
		}
	}

	citations, err := store.GetCitationsBySource(ctx, paper.ID)
	if err != nil {
		return err
	}
	if len(citations) > 0 {
		fmt.Printf("\ncites %d papers\n", len(citations))
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Store().CountPapersByStatus(context.Background())
	if err != nil {
		return err
	}

	total := 0
	for _, status := range []core.Status{
		core.StatusQueued, core.StatusMetadata, core.StatusParsed,
		core.StatusExtracted, core.StatusReady, core.StatusFailed,
	} {
		fmt.Printf("%-10s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("%-10s %d\n", "total", total)
	return nil
}

func reindexCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer := db.NewReindexer(reindexConfig, os.Stderr)
	if err := reindexer.Run(context.Background()); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
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
