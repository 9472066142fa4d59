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


package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/graphrag/ai"
	"gopkg.in/yaml.v3"
)

// Config holds all engine settings.
type Config struct {
	// DatabasePath is the BadgerDB directory.
	DatabasePath string `yaml:"database_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// EmbeddingDimension pins the vector size. Zero adopts the first
	// embedding indexed.
	EmbeddingDimension int `yaml:"embedding_dimension"`

	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Graph      GraphConfig      `yaml:"graph"`
	Vector     VectorConfig     `yaml:"vector"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	AI         AIConfig         `yaml:"ai"`
}

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	DefaultNResults     int           `yaml:"default_n_results"`
	DefaultGraphDepth   int           `yaml:"default_graph_depth"`
	OperationTimeout    time.Duration `yaml:"operation_timeout"`
	CorroborationBonus  float64       `yaml:"corroboration_bonus"`
	DegreeDecay         float64       `yaml:"degree_decay"`
	CandidateMultiplier int           `yaml:"candidate_multiplier"`

	// CategoryDefaults takes unset result counts and depths from the
	// query category instead of the defaults above.
	CategoryDefaults bool `yaml:"category_defaults"`
}

// GraphConfig tunes traversal.
type GraphConfig struct {
	MaxPathHops int `yaml:"max_path_hops"`

	// MaxRelated caps a neighborhood expansion. Zero is unlimited.
	MaxRelated int `yaml:"max_related"`
}

// VectorConfig tunes semantic search.
type VectorConfig struct {
	// ExactSearchLimit is the index size up to which search scans every
	// vector instead of using the ANN graph.
	ExactSearchLimit int `yaml:"exact_search_limit"`
	QueryCacheSize   int `yaml:"query_cache_size"`
}

// ClassifierConfig tunes query classification.
type ClassifierConfig struct {
	// UseLLM asks the chat model first and falls back to the heuristic.
	UseLLM    bool `yaml:"use_llm"`
	CacheSize int  `yaml:"cache_size"`
}

// IngestionConfig tunes indexing and re-embedding.
type IngestionConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	PoolSize   int           `yaml:"pool_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AIConfig holds the model endpoints.
type AIConfig struct {
	EmbeddingHost   string  `yaml:"embedding_host"`
	ClassifierHost  string  `yaml:"classifier_host"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	ClassifierModel string  `yaml:"classifier_model"`
	APIKey          string  `yaml:"api_key"`
	Temperature     float64 `yaml:"temperature"`
	MaxRetries      int     `yaml:"max_retries"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	defaults := ai.DefaultConfig()
	return &Config{
		DatabasePath: "graphrag.db",
		LogLevel:     "info",
		Retrieval: RetrievalConfig{
			DefaultNResults:     5,
			DefaultGraphDepth:   2,
			OperationTimeout:    30 * time.Second,
			CorroborationBonus:  0.1,
			DegreeDecay:         0.1,
			CandidateMultiplier: 2,
		},
		Graph: GraphConfig{
			MaxPathHops: 6,
		},
		Vector: VectorConfig{
			ExactSearchLimit: 2048,
			QueryCacheSize:   512,
		},
		Classifier: ClassifierConfig{
			UseLLM:    true,
			CacheSize: 256,
		},
		Ingestion: IngestionConfig{
			BatchSize:  100,
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		AI: AIConfig{
			EmbeddingHost:   defaults.EmbeddingHost,
			ClassifierHost:  defaults.ClassifierHost,
			EmbeddingModel:  defaults.EmbeddingModel,
			ClassifierModel: defaults.ClassifierModel,
			Temperature:     defaults.Temperature,
			MaxRetries:      defaults.MaxRetries,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML decodes the file over the current values, so keys absent from
// the file keep their defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: "+format, args...))
		}
	}

	check(c.DatabasePath != "", "database_path is required")
	check(validLevels[strings.ToLower(c.LogLevel)], "log_level must be debug, info, warn or error, got %q", c.LogLevel)
	check(c.EmbeddingDimension >= 0, "embedding_dimension cannot be negative, got %d", c.EmbeddingDimension)

	r := c.Retrieval
	check(r.DefaultNResults > 0, "retrieval.default_n_results must be positive, got %d", r.DefaultNResults)
	check(r.DefaultGraphDepth >= 0, "retrieval.default_graph_depth cannot be negative, got %d", r.DefaultGraphDepth)
	check(r.OperationTimeout >= 0, "retrieval.operation_timeout cannot be negative, got %s", r.OperationTimeout)
	check(r.CorroborationBonus >= 0 && r.CorroborationBonus <= 1, "retrieval.corroboration_bonus must be between 0 and 1, got %g", r.CorroborationBonus)
	check(r.DegreeDecay >= 0, "retrieval.degree_decay cannot be negative, got %g", r.DegreeDecay)
	check(r.CandidateMultiplier > 0, "retrieval.candidate_multiplier must be positive, got %d", r.CandidateMultiplier)

	check(c.Graph.MaxPathHops > 0, "graph.max_path_hops must be positive, got %d", c.Graph.MaxPathHops)
	check(c.Graph.MaxRelated >= 0, "graph.max_related cannot be negative, got %d", c.Graph.MaxRelated)

	check(c.Vector.ExactSearchLimit >= 0, "vector.exact_search_limit cannot be negative, got %d", c.Vector.ExactSearchLimit)
	check(c.Vector.QueryCacheSize >= 0, "vector.query_cache_size cannot be negative, got %d", c.Vector.QueryCacheSize)
	check(c.Classifier.CacheSize >= 0, "classifier.cache_size cannot be negative, got %d", c.Classifier.CacheSize)

	check(c.Ingestion.BatchSize > 0, "ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	check(c.Ingestion.PoolSize >= 0, "ingestion.pool_size cannot be negative, got %d", c.Ingestion.PoolSize)
	check(c.Ingestion.MaxRetries > 0, "ingestion.max_retries must be positive, got %d", c.Ingestion.MaxRetries)
	check(c.Ingestion.RetryDelay >= 0, "ingestion.retry_delay cannot be negative, got %s", c.Ingestion.RetryDelay)

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// AIConfig converts the model settings for ai providers.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithClassifierHost(c.AI.ClassifierHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithClassifierModel(c.AI.ClassifierModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxRetries(c.AI.MaxRetries),
	)
	cfg.Normalize()
	return cfg
}
