package openai

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/poiesic/graphrag/ai"
	"github.com/tmc/langchaingo/llms"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
// The model answers in a line-oriented text protocol, see ParseExtraction.
type EntityExtractor struct {
	client      llms.Model
	temperature float64
	maxRetries  int
	logger      *slog.Logger
}

// newEntityExtractor wraps an existing chat client.
func newEntityExtractor(config *ai.Config, client llms.Model) *EntityExtractor {
	return &EntityExtractor{
		client:      client,
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		logger:      slog.Default().With("component", "openai-extractor"),
	}
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return newEntityExtractor(config, client), nil
}

// ExtractGraph extracts entities and relationships from text.
// Answers without an ENTITIES section are retried.
func (e *EntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.Extraction, error) {
	content := messages("", buildExtractionPrompt(text))

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		response, err := complete(ctx, e.client, content, llms.WithTemperature(e.temperature))
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if !entitiesHeading.MatchString(response) {
			lastErr = ErrEmptyResponse
			e.logger.Warn("extraction response missing entities section", "attempt", attempt+1, "response", response)
			continue
		}

		extraction := ParseExtraction(response)
		e.logger.Debug("extracted graph",
			"entities", len(extraction.Entities),
			"relationships", len(extraction.Relationships))
		return extraction, nil
	}

	e.logger.Error("failed to parse extraction response after retries", "err", lastErr)
	return nil, malformed(e.maxRetries, lastErr)
}

var (
	entitiesHeading      = regexp.MustCompile(`(?i)ENTITIES:`)
	relationshipsHeading = regexp.MustCompile(`(?i)RELATIONSHIPS:`)
	entityLine       = regexp.MustCompile(`^[-*]\s*Name:\s*(.+?),\s*Type:\s*(.+?),\s*Description:\s*(.*)$`)
	relationshipLine = regexp.MustCompile(`\((.+?)\)\s*-\[(.+?)\]->\s*\((.+?)\)`)
)

// ParseExtraction parses the extraction text protocol:
//
//	ENTITIES:
//	- Name: BERT, Type: TECHNOLOGY, Description: Bidirectional encoder
//	RELATIONSHIPS:
//	- (BERT) -[VARIANT_OF]-> (Transformer)
//
// Description lines may wrap; continuation lines are appended to the previous
// entity. Entities are deduplicated by name, case-insensitively, keeping the
// first. Lines that match neither form are ignored.
func ParseExtraction(text string) *ai.Extraction {
	entitiesText, relationshipsText := splitSections(stripCodeFences(text))
	extraction := &ai.Extraction{}

	seen := make(map[string]bool)
	var last *ai.ExtractedEntity
	for _, line := range strings.Split(entitiesText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			last = nil
			continue
		}

		m := entityLine.FindStringSubmatch(line)
		if m == nil {
			if last != nil && !strings.HasPrefix(line, "-") {
				last.Description = strings.TrimSpace(last.Description + " " + line)
			}
			continue
		}

		name := strings.TrimSpace(m[1])
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			last = nil
			continue
		}
		seen[key] = true
		extraction.Entities = append(extraction.Entities, ai.ExtractedEntity{
			Name:        name,
			Type:        strings.ToUpper(strings.TrimSpace(m[2])),
			Description: strings.TrimSpace(m[3]),
		})
		last = &extraction.Entities[len(extraction.Entities)-1]
	}

	for _, m := range relationshipLine.FindAllStringSubmatch(relationshipsText, -1) {
		rel := ai.ExtractedRelationship{
			Source: strings.TrimSpace(m[1]),
			Type:   strings.TrimSpace(m[2]),
			Target: strings.TrimSpace(m[3]),
		}
		if rel.Source == "" || rel.Target == "" || rel.Type == "" {
			continue
		}
		extraction.Relationships = append(extraction.Relationships, rel)
	}

	return extraction
}

// splitSections returns the text of the entities and relationships sections.
// Headers are matched case-insensitively.
func splitSections(text string) (string, string) {
	entities, relationships := text, ""
	if loc := relationshipsHeading.FindStringIndex(text); loc != nil {
		entities = text[:loc[0]]
		relationships = text[loc[1]:]
	}
	if loc := entitiesHeading.FindStringIndex(entities); loc != nil {
		entities = entities[loc[1]:]
	}
	return entities, relationships
}
