package retrieval

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/poiesic/graphrag/classify"
	"github.com/poiesic/graphrag/core"
)

func (r *Retriever) searchVector(ctx context.Context, query string, k int, minRelevance float64) ([]core.RetrievalResult, error) {
	results, err := r.vector.Search(ctx, query, k, minRelevance)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Origin = core.OriginVector
	}
	return results, nil
}

type graphHit struct {
	score float64
	path  []string
}

// searchGraph expands the query's key entities and scores the chunks that
// mention each entity reached. A deadline hit between entities returns the
// results gathered so far together with the timeout error.
func (r *Retriever) searchGraph(ctx context.Context, analysis *core.QueryAnalysis, limit, depth int, monitor Monitor) ([]core.RetrievalResult, error) {
	entities := keyEntities(analysis)
	if len(entities) == 0 {
		return nil, nil
	}

	hits := make(map[string]graphHit)
	var cutoff error

	for _, name := range entities {
		if err := ctx.Err(); err != nil {
			cutoff = core.Unavailable(core.ErrGraphUnavailable, err)
			break
		}

		related, err := r.graph.RelatedEntities(ctx, name, depth)
		if err != nil {
			err = core.Unavailable(core.ErrGraphUnavailable, err)
			if !isTimeout(err) {
				return nil, err
			}
			cutoff = err
			break
		}
		monitor.RelatedEntities(name, related)

		for _, rel := range related {
			score := r.entityScore(rel)
			for _, chunkID := range rel.Entity.SourceChunkIDs {
				if best, ok := hits[chunkID]; !ok || score > best.score {
					hits[chunkID] = graphHit{score: score, path: rel.Path}
				}
			}
		}
	}

	if len(hits) == 0 {
		return nil, cutoff
	}

	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return compareResults(
			core.RetrievalResult{SourceChunkID: a, RelevanceScore: hits[a].score},
			core.RetrievalResult{SourceChunkID: b, RelevanceScore: hits[b].score},
		)
	})

	// Chunk reads are local; a branch that ran out of time still resolves
	// what it found.
	fetchCtx := ctx
	if cutoff != nil {
		fetchCtx = context.WithoutCancel(ctx)
	}

	var results []core.RetrievalResult
	for start := 0; start < len(ids) && len(results) < limit; start += limit {
		end := min(start+limit, len(ids))
		chunks, err := r.vector.Chunks(fetchCtx, ids[start:end]...)
		if err != nil {
			return results, err
		}
		for _, chunk := range chunks {
			if chunk.Content == "" || len(results) >= limit {
				continue
			}
			hit := hits[chunk.ID]
			results = append(results, core.RetrievalResult{
				Content:        chunk.Content,
				SourceChunkID:  chunk.ID,
				RelevanceScore: hit.score,
				Origin:         core.OriginGraph,
				GraphPath:      slices.Clone(hit.path),
				Metadata:       chunk.Metadata,
			})
		}
	}

	return results, cutoff
}

// entityScore is 1/(1+distance) damped by the log of the entity's degree.
func (r *Retriever) entityScore(rel core.RelatedEntity) float64 {
	proximity := 1 / (1 + float64(rel.Distance))
	return proximity / (1 + r.degreeDecay*math.Log1p(float64(rel.Degree)))
}

func keyEntities(analysis *core.QueryAnalysis) []string {
	if analysis == nil {
		return nil
	}
	if len(analysis.KeyEntities) > 0 {
		return analysis.KeyEntities
	}
	return classify.ExtractEntities(analysis.RawQuery)
}

func isTimeout(err error) bool {
	return errors.Is(err, core.ErrTimeout)
}
