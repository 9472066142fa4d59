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


package graphrag

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/openai"
	"github.com/poiesic/graphrag/assemble"
	"github.com/poiesic/graphrag/classify"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/graph"
	"github.com/poiesic/graphrag/ingestion"
	"github.com/poiesic/graphrag/retrieval"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/poiesic/graphrag/vector"
)

// Engine wires storage, the AI provider, both indexes, the classifier and
// the retriever together.
type Engine struct {
	config     *config.Config
	stores     *badger.Stores
	provider   ai.AIProvider
	vector     *vector.Index
	graph      *graph.Index
	classifier classify.Classifier
	retriever  *retrieval.Retriever
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	config   *config.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithConfig sets the engine configuration. Default is config.NewConfig().
func WithConfig(cfg *config.Config) EngineOption {
	return func(o *engineOptions) {
		o.config = cfg
	}
}

// WithAIProvider injects the AI provider instead of building an OpenAI-compatible
// one from the configuration. The engine closes it on Close.
func WithAIProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory. The path is ignored.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open opens the database at path and builds the engine on it. An empty
// path uses the configured DatabasePath.
func Open(path string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if path == "" {
		path = cfg.DatabasePath
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	stores, err := badger.OpenStores(path, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		if provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			stores.Close()
			return nil, err
		}
	}

	e := &Engine{
		config:   cfg,
		stores:   stores,
		provider: provider,
		logger:   logger.With("component", "engine"),
	}
	if err := e.build(logger); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(logger *slog.Logger) error {
	cfg := e.config
	var err error

	e.vector, err = vector.NewIndex(context.Background(), e.stores.Chunks, e.provider.Embedder(),
		vector.WithLogger(logger),
		vector.WithBatchSize(cfg.Ingestion.BatchSize),
		vector.WithDimension(cfg.EmbeddingDimension),
		vector.WithExactSearchLimit(cfg.Vector.ExactSearchLimit),
		vector.WithQueryCacheSize(cfg.Vector.QueryCacheSize))
	if err != nil {
		return err
	}

	e.graph, err = graph.NewIndex(e.stores.Graph,
		graph.WithLogger(logger),
		graph.WithMaxRelated(cfg.Graph.MaxRelated),
		graph.WithMaxPathHops(cfg.Graph.MaxPathHops))
	if err != nil {
		return err
	}

	var primary classify.Classifier
	if cfg.Classifier.UseLLM {
		if primary, err = classify.NewLLM(e.provider.QueryClassifier(), classify.WithLogger(logger)); err != nil {
			return err
		}
	}
	e.classifier, err = classify.NewHybrid(primary,
		classify.WithLogger(logger),
		classify.WithCacheSize(cfg.Classifier.CacheSize))
	if err != nil {
		return err
	}

	r := cfg.Retrieval
	e.retriever, err = retrieval.NewRetriever(e.vector, e.graph, e.classifier,
		retrieval.WithLogger(logger),
		retrieval.WithDefaultNResults(r.DefaultNResults),
		retrieval.WithDefaultGraphDepth(r.DefaultGraphDepth),
		retrieval.WithOperationTimeout(r.OperationTimeout),
		retrieval.WithCorroborationBonus(r.CorroborationBonus),
		retrieval.WithDegreeDecay(r.DegreeDecay),
		retrieval.WithCandidateMultiplier(r.CandidateMultiplier),
		retrieval.WithCategoryDefaults(r.CategoryDefaults))
	return err
}

// Close releases the AI provider and the database.
func (e *Engine) Close() error {
	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.stores.Close(); err != nil {
		e.logger.Error("error closing storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) VectorIndex() *vector.Index {
	return e.vector
}

func (e *Engine) GraphIndex() *graph.Index {
	return e.graph
}

func (e *Engine) Classifier() classify.Classifier {
	return e.classifier
}

func (e *Engine) Retriever() *retrieval.Retriever {
	return e.retriever
}

// NewIndexer creates an indexer feeding both indexes. The caller must
// Release it.
func (e *Engine) NewIndexer(opts ...ingestion.Option) (*ingestion.Indexer, error) {
	ing := e.config.Ingestion
	defaults := []ingestion.Option{
		ingestion.WithLogger(e.logger),
		ingestion.WithBatchSize(ing.BatchSize),
		ingestion.WithRetry(ing.MaxRetries, ing.RetryDelay),
	}
	if ing.PoolSize > 0 {
		defaults = append(defaults, ingestion.WithPoolSize(ing.PoolSize))
	}
	return ingestion.NewIndexer(e.vector, e.graph, e.provider.EntityExtractor(), append(defaults, opts...)...)
}

// NewReembedder creates a re-embed job writing progress to progress.
// A nil config uses the ingestion settings.
func (e *Engine) NewReembedder(cfg *ingestion.Config, progress io.Writer) (*ingestion.Reembedder, error) {
	if cfg == nil {
		cfg = &ingestion.Config{
			BatchSize:      e.config.Ingestion.BatchSize,
			ReportInterval: e.config.Ingestion.BatchSize,
			MaxRetries:     e.config.Ingestion.MaxRetries,
			RetryDelay:     e.config.Ingestion.RetryDelay,
		}
	}
	return ingestion.NewReembedder(e.stores.Chunks, e.stores.Checkpoints, e.vector, e.provider.Embedder(), cfg, progress)
}

// Query retrieves evidence for query and assembles it with the surrounding
// subgraph. The response is returned alongside an error when partial
// results exist.
func (e *Engine) Query(ctx context.Context, query string, opts ...retrieval.RetrieveOption) (*assemble.Context, *retrieval.Response, error) {
	resp, sub, err := e.retriever.RetrieveWithContext(ctx, query, opts...)
	if resp == nil {
		return nil, nil, err
	}
	return assemble.Assemble(query, resp.Results, sub), resp, err
}

// Stats summarizes both indexes.
func (e *Engine) Stats(ctx context.Context) (core.VectorStats, core.GraphStats, error) {
	vs, err := e.vector.Stats(ctx)
	if err != nil {
		return vs, core.GraphStats{}, err
	}
	gs, err := e.graph.Stats(ctx)
	return vs, gs, err
}

// Reset clears both indexes and any job checkpoints.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.vector.Reset(ctx); err != nil {
		return err
	}
	if err := e.graph.Reset(ctx); err != nil {
		return err
	}
	return e.stores.Checkpoints.DeleteCheckpoint(ctx, ingestion.ReembedProcessor)
}
