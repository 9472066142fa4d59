package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/graphrag/ai"
	"github.com/tmc/langchaingo/llms"
)

// QueryClassifier implements ai.QueryClassifier using OpenAI-compatible chat APIs
// in JSON mode.
type QueryClassifier struct {
	client      llms.Model
	temperature float64
	maxRetries  int
	logger      *slog.Logger
}

// newQueryClassifier wraps an existing chat client.
func newQueryClassifier(config *ai.Config, client llms.Model) *QueryClassifier {
	return &QueryClassifier{
		client:      client,
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		logger:      slog.Default().With("component", "openai-classifier"),
	}
}

// NewQueryClassifier creates a new query classifier using the provided configuration.
//
// Returns ai.QueryClassifier interface to enforce abstraction.
func NewQueryClassifier(config *ai.Config) (ai.QueryClassifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return newQueryClassifier(config, client), nil
}

// ClassifyQuery asks the model for the query's category, key entities and
// reasoning. Malformed answers and unknown categories are retried; transport
// errors are returned immediately.
func (c *QueryClassifier) ClassifyQuery(ctx context.Context, query string) (*ai.QueryClassification, error) {
	content := messages(buildClassificationPrompt(), query)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		text, err := complete(ctx, c.client, content, llms.WithTemperature(c.temperature), llms.WithJSONMode())
		if err != nil {
			c.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		result, err := parseClassification(text)
		if err != nil {
			lastErr = err
			c.logger.Warn("error parsing classifier response",
				"attempt", attempt+1,
				"response", text,
				"err", err)
			continue
		}

		c.logger.Debug("classified query", "category", result.Category, "entities", len(result.KeyEntities))
		return result, nil
	}

	c.logger.Error("failed to parse classifier response after retries", "err", lastErr)
	return nil, malformed(c.maxRetries, lastErr)
}

// parseClassification decodes a classifier answer, tolerating code fences and
// the key quoting mistakes small models make.
func parseClassification(text string) (*ai.QueryClassification, error) {
	text = repairJSON(stripCodeFences(text))

	var result ai.QueryClassification
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, err
	}

	category := strings.ToUpper(strings.Join(strings.Fields(result.Category), "_"))
	if !slices.Contains(ai.Categories, category) {
		return nil, fmt.Errorf("unknown category %q", result.Category)
	}
	result.Category = category

	entities := result.KeyEntities[:0]
	for _, e := range result.KeyEntities {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}
	result.KeyEntities = entities
	result.Reasoning = strings.TrimSpace(result.Reasoning)

	return &result, nil
}
