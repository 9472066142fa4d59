package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/graphrag/core"
)

// Markers in priority order. The first category with a match wins.
var (
	comparativeMarkers = regexp.MustCompile(`\b(differ\w*|difference|vs|versus|compar\w*|contrast\w*)\b`)
	causalMarkers      = regexp.MustCompile(`\b(influenc\w*|leads? to|led to|caus\w*|impact\w*|results? in)\b`)
	relationalVerbs    = regexp.MustCompile(`\b(relat\w*|connect\w*|link\w*|depend\w*|us(es|ed)|builds? on|based on|deriv\w*)\b`)
	exploratoryMarkers = regexp.MustCompile(`\b(overview|what are the|survey\w*|landscape|explor\w*)\b`)
	trendMarkers       = regexp.MustCompile(`\b(trend\w*|over time|recent\w*|evolv\w*|history of|in the last)\b`)
)

// Heuristic classifies queries with keyword markers. It never fails.
type Heuristic struct{}

// NewHeuristic creates a heuristic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Analyze classifies query by its markers and extracts its entities.
func (h *Heuristic) Analyze(_ context.Context, query string) (*core.QueryAnalysis, error) {
	entities := ExtractEntities(query)
	category, reasoning := Categorize(query, entities)

	return &core.QueryAnalysis{
		RawQuery:    query,
		Category:    category,
		Strategy:    core.StrategyFor(category),
		KeyEntities: entities,
		Reasoning:   reasoning,
		Source:      core.AnalysisSourceHeuristic,
	}, nil
}

// Categorize applies the category markers in priority order and explains the
// match. Queries with no marker are FACTUAL.
func Categorize(query string, entities []string) (core.Category, string) {
	text := strings.ToLower(strings.Join(strings.Fields(query), " "))

	if m := comparativeMarkers.FindString(text); m != "" {
		return core.CategoryComparative, fmt.Sprintf("comparison marker %q", m)
	}
	if m := causalMarkers.FindString(text); m != "" {
		return core.CategoryRelational, fmt.Sprintf("causal marker %q", m)
	}
	if len(entities) >= 2 {
		if m := relationalVerbs.FindString(text); m != "" {
			return core.CategoryRelational, fmt.Sprintf("relational verb %q between %d entities", m, len(entities))
		}
	}
	if len(entities) != 1 {
		if m := exploratoryMarkers.FindString(text); m != "" {
			return core.CategoryExploratory, fmt.Sprintf("breadth marker %q", m)
		}
	}
	if m := trendMarkers.FindString(text); m != "" {
		return core.CategoryTrendAnalysis, fmt.Sprintf("temporal marker %q", m)
	}
	return core.CategoryFactual, "no markers"
}
