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
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/graphrag"
	"github.com/poiesic/graphrag/assemble"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/ingestion"
	"github.com/poiesic/graphrag/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner carries the engine options every command opens the engine with.
type runner struct {
	opts []graphrag.EngineOption
}

func newApp(opts ...graphrag.EngineOption) *cli.App {
	r := &runner{opts: opts}
	return &cli.App{
		Name:  "graphrag",
		Usage: "Hybrid vector and knowledge-graph retrieval",
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
				Usage:   "Path to BadgerDB database directory (overrides the config file)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index chunks from a JSON lines file",
				ArgsUsage: "<file.jsonl>",
				Action:    r.indexCommand,
			},
			{
				Name:      "query",
				Usage:     "Retrieve the chunks most relevant to a question",
				ArgsUsage: "<text>",
				Action:    r.queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Retrieval strategy (vector, graph, hybrid); default follows the query category",
					},
					&cli.IntFlag{
						Name:    "n-results",
						Aliases: []string{"n"},
						Usage:   "Number of results to return (0 uses the configured default)",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Graph traversal depth (0 uses the configured default)",
					},
					&cli.BoolFlag{
						Name:  "context",
						Usage: "Print the assembled context instead of the result list",
					},
				},
			},
			{
				Name:      "classify",
				Usage:     "Show how a question is classified",
				ArgsUsage: "<text>",
				Action:    r.classifyCommand,
			},
			{
				Name:      "related",
				Usage:     "List entities reachable from an entity",
				ArgsUsage: "<name>",
				Action:    r.relatedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Maximum number of hops",
						Value: 2,
					},
				},
			},
			{
				Name:      "path",
				Usage:     "Find the shortest path between two entities",
				ArgsUsage: "<source> <target>",
				Action:    r.pathCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-hops",
						Usage: "Maximum path length (0 uses the configured default)",
					},
				},
			},
			{
				Name:      "subgraph",
				Usage:     "Show the neighborhood of one or more entities",
				ArgsUsage: "<name>...",
				Action:    r.subgraphCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Maximum number of hops from the anchors",
						Value: 1,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Summarize both indexes",
				Action: r.statsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all chunks with the configured embedding model",
				Action: r.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
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
			{
				Name:   "reset",
				Usage:  "Delete every chunk, entity and relationship",
				Action: r.resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:     "yes",
						Usage:    "Confirm the reset",
						Required: true,
					},
				},
			},
			{
				Name:      "init-config",
				Usage:     "Write the effective configuration as YAML",
				ArgsUsage: "<file.yaml>",
				Action:    r.initConfigCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.DatabasePath = db
	}
	return cfg, nil
}

func (r *runner) openEngine(c *cli.Context) (*graphrag.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts := append([]graphrag.EngineOption{graphrag.WithConfig(cfg)}, r.opts...)
	engine, err := graphrag.Open(cfg.DatabasePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

// chunkRecord is one line of an index input file.
type chunkRecord struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	DocumentID string            `json:"document_id"`
	Position   int               `json:"position"`
	Metadata   map[string]string `json:"metadata"`
}

func readChunks(in io.Reader) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		chunks = append(chunks, &core.Chunk{
			ID:               rec.ID,
			Content:          rec.Content,
			SourceDocumentID: rec.DocumentID,
			PositionIndex:    rec.Position,
			Metadata:         rec.Metadata,
		})
	}
	return chunks, scanner.Err()
}

func (r *runner) indexCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	chunks, err := readChunks(f)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(chunks) == 0 {
		fmt.Fprintln(c.App.Writer, "No chunks to index")
		return nil
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	indexer, err := engine.NewIndexer()
	if err != nil {
		return err
	}
	defer indexer.Release()

	batchSize := engine.Config().Ingestion.BatchSize
	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, len(chunks), batchSize)
	tracker.Start()

	var total ingestion.Report
	for batch := range slices.Chunk(chunks, batchSize) {
		report, err := indexer.Index(c.Context, batch...)
		if report != nil {
			total.Chunks += report.Chunks
			total.Entities += report.Entities
			total.Relationships += report.Relationships
			total.Failed = append(total.Failed, report.Failed...)
		}
		if err != nil && !errors.Is(err, ingestion.ErrExtractionFailed) {
			return fmt.Errorf("indexing failed: %w", err)
		}
		tracker.Increment(len(batch))
	}
	tracker.Finish()

	fmt.Fprintf(c.App.Writer, "Indexed %d chunks, %d entities, %d relationships\n",
		total.Chunks, total.Entities, total.Relationships)
	if len(total.Failed) > 0 {
		fmt.Fprintf(c.App.Writer, "Extraction failed for %d chunks: %s\n",
			len(total.Failed), strings.Join(total.Failed, ", "))
	}
	return nil
}

func (r *runner) queryCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query text is required")
	}

	var opts []retrieval.RetrieveOption
	if s := c.String("strategy"); s != "" {
		strategy, err := core.ParseStrategy(s)
		if err != nil {
			return err
		}
		opts = append(opts, retrieval.WithStrategy(strategy))
	}
	if c.IsSet("n-results") {
		opts = append(opts, retrieval.WithNResults(c.Int("n-results")))
	}
	if c.IsSet("depth") {
		opts = append(opts, retrieval.WithGraphDepth(c.Int("depth")))
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	assembled, resp, err := engine.Query(c.Context, query, opts...)
	if resp == nil || (err != nil && len(resp.Results) == 0) {
		return err
	}
	if err != nil {
		slog.Warn("query returned partial results", "err", err)
	}

	out := c.App.Writer
	if c.Bool("context") {
		fmt.Fprintln(out, assembled.Render())
		return nil
	}

	fmt.Fprintf(out, "Category: %s  Strategy: %s  Results: %d\n",
		resp.Analysis.Category, resp.Strategy, len(resp.Results))
	if resp.Degraded {
		for origin, branchErr := range resp.BranchErrors {
			fmt.Fprintf(out, "Degraded: %s branch failed: %v\n", origin, branchErr)
		}
	}
	for i, result := range resp.Results {
		fmt.Fprintf(out, "%d. %s  %.3f  %s", i+1, result.SourceChunkID, result.RelevanceScore, result.Origin)
		if len(result.GraphPath) > 0 {
			fmt.Fprintf(out, "  via %s", strings.Join(result.GraphPath, " -> "))
		}
		fmt.Fprintf(out, "\n   %s\n", preview(result.Content, 120))
	}
	return nil
}

func (r *runner) classifyCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query text is required")
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	analysis, err := engine.Classifier().Analyze(c.Context, query)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Category:     %s\n", analysis.Category)
	fmt.Fprintf(out, "Strategy:     %s\n", analysis.Strategy)
	fmt.Fprintf(out, "Key entities: %s\n", strings.Join(analysis.KeyEntities, ", "))
	fmt.Fprintf(out, "Source:       %s\n", analysis.Source)
	if analysis.Reasoning != "" {
		fmt.Fprintf(out, "Reasoning:    %s\n", analysis.Reasoning)
	}
	return nil
}

func (r *runner) relatedCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one entity name")
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	related, err := engine.GraphIndex().RelatedEntities(c.Context, c.Args().First(), c.Int("depth"))
	if err != nil {
		return err
	}
	if len(related) == 0 {
		fmt.Fprintln(c.App.Writer, "No related entities found")
		return nil
	}
	for _, re := range related {
		fmt.Fprintf(c.App.Writer, "%s (%s)  distance=%d degree=%d  path=%s\n",
			re.Entity.Name, re.Entity.Type, re.Distance, re.Degree, strings.Join(re.Path, " -> "))
	}
	return nil
}

func (r *runner) pathCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected a source and a target entity")
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	path, err := engine.GraphIndex().FindPath(c.Context, c.Args().Get(0), c.Args().Get(1), c.Int("max-hops"))
	if err != nil {
		return err
	}
	if path == nil {
		fmt.Fprintln(c.App.Writer, "No path found")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(path.Entities[0])
	for i, rel := range path.Relationships {
		fmt.Fprintf(&sb, " -[%s]-> %s", rel, path.Entities[i+1])
	}
	fmt.Fprintf(c.App.Writer, "%s  (%d hops)\n", sb.String(), path.Len())
	return nil
}

func (r *runner) subgraphCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("expected at least one entity name")
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	sub, err := engine.GraphIndex().Subgraph(c.Context, c.Args().Slice(), c.Int("depth"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, assemble.Assemble("", nil, sub).RenderGraph())
	return nil
}

func (r *runner) statsCommand(c *cli.Context) error {
	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	vs, gs, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Chunks:        %d\n", vs.TotalChunks)
	fmt.Fprintf(out, "Dimension:     %d\n", vs.Dimension)
	fmt.Fprintf(out, "Entities:      %d\n", gs.TotalEntities)
	fmt.Fprintf(out, "Relationships: %d\n", gs.TotalRelationships)

	types := make([]core.EntityType, 0, len(gs.EntityTypes))
	for t := range gs.EntityTypes {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-13s %d\n", t.String()+":", gs.EntityTypes[t])
	}
	return nil
}

func (r *runner) reembedCommand(c *cli.Context) error {
	// Validate flags
	reembedConfig := &ingestion.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	cfg := engine.Config()
	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.DatabasePath)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func (r *runner) resetCommand(c *cli.Context) error {
	engine, err := r.openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Reset(c.Context); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Database reset")
	return nil
}

func (r *runner) initConfigCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one output file")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return cfg.WriteYAML(c.Args().First())
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
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
