package classify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/graphrag/core"
)

// Hybrid tries a model-backed classifier and falls back to the heuristic on
// any failure. Model answers are cached by normalized query text.
type Hybrid struct {
	primary   Classifier
	heuristic *Heuristic
	cache     *lru.Cache[string, core.QueryAnalysis]
	logger    *slog.Logger
}

// NewHybrid creates the production classifier. A nil primary classifies with
// the heuristic alone.
func NewHybrid(primary Classifier, opts ...Option) (*Hybrid, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	h := &Hybrid{
		primary:   primary,
		heuristic: NewHeuristic(),
		logger:    s.logger,
	}
	if primary != nil && s.cacheSize > 0 {
		h.cache, err = lru.New[string, core.QueryAnalysis](s.cacheSize)
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Analyze never returns an error caused by the model.
func (h *Hybrid) Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if h.primary == nil || key == "" {
		return h.heuristic.Analyze(ctx, query)
	}

	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			return withQuery(cached, query), nil
		}
	}

	analysis, err := h.primary.Analyze(ctx, query)
	if err == nil && analysis == nil {
		err = errors.New("empty analysis")
	}
	if err != nil {
		h.logger.Warn("classifier unavailable, using heuristics", "err", err)
		return h.heuristic.Analyze(ctx, query)
	}

	if h.cache != nil {
		h.cache.Add(key, *withQuery(*analysis, query))
	}
	return analysis, nil
}

func withQuery(a core.QueryAnalysis, query string) *core.QueryAnalysis {
	a.RawQuery = query
	a.KeyEntities = slices.Clone(a.KeyEntities)
	return &a
}
