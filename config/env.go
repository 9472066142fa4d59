package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every environment variable the config reads.
const EnvPrefix = "GRAPHRAG_"

type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies GRAPHRAG_* variables. Malformed values are
// reported rather than ignored.
func (c *Config) applyEnvOverrides(lookup lookupFunc) error {
	e := &envReader{lookup: lookup}

	e.str("DB", &c.DatabasePath)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.int("EMBEDDING_DIMENSION", &c.EmbeddingDimension)

	e.int("N_RESULTS", &c.Retrieval.DefaultNResults)
	e.int("GRAPH_DEPTH", &c.Retrieval.DefaultGraphDepth)
	e.duration("OPERATION_TIMEOUT", &c.Retrieval.OperationTimeout)
	e.float("CORROBORATION_BONUS", &c.Retrieval.CorroborationBonus)
	e.float("DEGREE_DECAY", &c.Retrieval.DegreeDecay)
	e.int("CANDIDATE_MULTIPLIER", &c.Retrieval.CandidateMultiplier)
	e.bool("CATEGORY_DEFAULTS", &c.Retrieval.CategoryDefaults)

	e.int("MAX_PATH_HOPS", &c.Graph.MaxPathHops)
	e.int("MAX_RELATED", &c.Graph.MaxRelated)
	e.int("EXACT_SEARCH_LIMIT", &c.Vector.ExactSearchLimit)
	e.bool("USE_LLM_CLASSIFIER", &c.Classifier.UseLLM)
	e.int("CLASSIFIER_CACHE_SIZE", &c.Classifier.CacheSize)

	e.int("BATCH_SIZE", &c.Ingestion.BatchSize)
	e.int("POOL_SIZE", &c.Ingestion.PoolSize)

	e.str("EMBEDDING_HOST", &c.AI.EmbeddingHost)
	e.str("CLASSIFIER_HOST", &c.AI.ClassifierHost)
	e.str("EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	e.str("CLASSIFIER_MODEL", &c.AI.ClassifierModel)
	e.str("API_KEY", &c.AI.APIKey)
	e.float("TEMPERATURE", &c.AI.Temperature)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, name, value, err))
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = d
	}
}
