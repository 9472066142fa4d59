package retrieval

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/graphrag/core"
)

// Fuse merges the vector and graph candidates by chunk ID.
//
// A chunk found by both branches scores min(1, max(v, g) + bonus*min(v, g))
// and is marked BOTH; it keeps the vector result's metadata and the graph
// result's path. Chunks found by one branch keep their score and origin.
// The result is unordered; see Rank.
func Fuse(vector, graph []core.RetrievalResult, bonus float64) []core.RetrievalResult {
	byID := make(map[string]core.RetrievalResult, len(vector)+len(graph))

	for _, v := range vector {
		if existing, ok := byID[v.SourceChunkID]; !ok || v.RelevanceScore > existing.RelevanceScore {
			byID[v.SourceChunkID] = v
		}
	}

	fromGraph := make(map[string]core.RetrievalResult, len(graph))
	for _, g := range graph {
		if existing, ok := fromGraph[g.SourceChunkID]; !ok || g.RelevanceScore > existing.RelevanceScore {
			fromGraph[g.SourceChunkID] = g
		}
	}

	for id, g := range fromGraph {
		v, ok := byID[id]
		if !ok {
			byID[id] = g
			continue
		}
		v.RelevanceScore = Corroborate(v.RelevanceScore, g.RelevanceScore, bonus)
		v.Origin = core.OriginBoth
		v.GraphPath = g.GraphPath
		if v.Content == "" {
			v.Content = g.Content
		}
		byID[id] = v
	}

	return slices.Collect(maps.Values(byID))
}

// Corroborate combines the two branch scores of a chunk found by both.
func Corroborate(v, g, bonus float64) float64 {
	return min(1, max(v, g)+bonus*min(v, g))
}

// Rank orders results by score descending, then origin (BOTH, GRAPH,
// VECTOR), then chunk ID ascending.
func Rank(results []core.RetrievalResult) {
	slices.SortFunc(results, compareResults)
}

func compareResults(a, b core.RetrievalResult) int {
	return cmp.Or(
		cmp.Compare(b.RelevanceScore, a.RelevanceScore),
		cmp.Compare(a.Origin.Priority(), b.Origin.Priority()),
		strings.Compare(a.SourceChunkID, b.SourceChunkID),
	)
}
