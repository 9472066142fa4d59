package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/core"
)

// LLM classifies queries with a language model.
type LLM struct {
	classifier ai.QueryClassifier
	logger     *slog.Logger
}

// NewLLM creates a classifier backed by the given capability.
func NewLLM(classifier ai.QueryClassifier, opts ...Option) (*LLM, error) {
	if classifier == nil {
		return nil, ErrQueryClassifierRequired
	}
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &LLM{classifier: classifier, logger: s.logger}, nil
}

// Analyze asks the model for a classification. The strategy is always derived
// from the category; the model's own suggestion is ignored. When the model
// names no entities, they are extracted from the query text.
func (l *LLM) Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	result, err := l.classifier.ClassifyQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrInvalidClassification)
	}

	category, err := core.ParseCategory(result.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidClassification, err)
	}

	entities := dedupe(result.KeyEntities)
	if len(entities) == 0 {
		entities = ExtractEntities(query)
	}

	return &core.QueryAnalysis{
		RawQuery:    query,
		Category:    category,
		Strategy:    core.StrategyFor(category),
		KeyEntities: entities,
		Reasoning:   result.Reasoning,
		Source:      core.AnalysisSourceLLM,
	}, nil
}

func dedupe(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.Join(strings.Fields(name), " ")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
