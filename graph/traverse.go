package graph

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// RelatedEntities returns the entities within maxDepth hops of name,
// ignoring edge direction. The anchor itself is included at distance 0.
//
// Results are ordered by distance ascending, then total degree descending,
// then normalized name ascending. An unknown name yields an empty result.
// A negative maxDepth is treated as 0.
func (idx *Index) RelatedEntities(ctx context.Context, name string, maxDepth int) ([]core.RelatedEntity, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	related, err := idx.related(ctx, core.NormalizeName(name), maxDepth, newEdgeCache())
	if err != nil {
		return nil, core.Unavailable(core.ErrGraphUnavailable, err)
	}
	return related, nil
}

type visit struct {
	distance int
	path     []string
}

func (idx *Index) related(ctx context.Context, anchor string, maxDepth int, edges *edgeCache) ([]core.RelatedEntity, error) {
	maxDepth = max(maxDepth, 0)

	root, err := idx.lookupEntity(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return []core.RelatedEntity{}, nil
	}

	visited := map[string]visit{anchor: {path: []string{anchor}}}
	order := []string{anchor}
	frontier := []string{anchor}
	full := false

	for depth := 0; depth < maxDepth && len(frontier) > 0 && !full; depth++ {
		var next []string
		for _, key := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			adjacent, err := edges.get(ctx, idx.repo, key)
			if err != nil {
				return nil, err
			}
			for _, e := range adjacent {
				if _, seen := visited[e.Neighbor]; seen {
					continue
				}
				if idx.maxRelated > 0 && len(order)-1 >= idx.maxRelated {
					full = true
					break
				}
				visited[e.Neighbor] = visit{
					distance: depth + 1,
					path:     append(slices.Clone(visited[key].path), e.Neighbor),
				}
				order = append(order, e.Neighbor)
				next = append(next, e.Neighbor)
			}
			if full {
				break
			}
		}
		slices.Sort(next)
		frontier = next
	}

	entities, err := idx.repo.GetEntities(ctx, order...)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*core.Entity, len(entities))
	for _, e := range entities {
		byKey[e.Key()] = e
	}

	result := make([]core.RelatedEntity, 0, len(order))
	for _, key := range order {
		entity, ok := byKey[key]
		if !ok {
			idx.logger.Warn("adjacency references missing entity", "entity", key)
			continue
		}
		adjacent, err := edges.get(ctx, idx.repo, key)
		if err != nil {
			return nil, err
		}
		v := visited[key]
		result = append(result, core.RelatedEntity{
			Entity:   *entity,
			Distance: v.distance,
			Degree:   len(adjacent),
			Path:     namesOf(v.path, byKey),
		})
	}

	slices.SortFunc(result, func(a, b core.RelatedEntity) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			cmp.Compare(b.Degree, a.Degree),
			cmp.Compare(a.Entity.Key(), b.Entity.Key()),
		)
	})
	return result, nil
}

// FindPath returns the shortest undirected path between source and target,
// or nil if either is unknown or no path exists within maxHops.
// A maxHops of zero or less uses the configured default.
//
// Among equally short paths the one with the smallest sequence of relationship
// types wins, then the smallest sequence of entity names. The search always
// runs from the lexicographically smaller endpoint, so FindPath(b, a) is the
// exact reverse of FindPath(a, b).
func (idx *Index) FindPath(ctx context.Context, source, target string, maxHops int) (*core.Path, error) {
	if maxHops <= 0 {
		maxHops = idx.maxPathHops
	}

	from, to := core.NormalizeName(source), core.NormalizeName(target)
	if from == "" || to == "" {
		return nil, nil
	}
	reversed := to < from
	if reversed {
		from, to = to, from
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	path, err := idx.shortestPath(ctx, from, to, maxHops)
	if err != nil {
		return nil, core.Unavailable(core.ErrGraphUnavailable, err)
	}
	if path != nil && reversed {
		slices.Reverse(path.Entities)
		slices.Reverse(path.Relationships)
	}
	return path, nil
}

type route struct {
	keys  []string
	types []string
}

func (r *route) less(o *route) bool {
	return cmp.Or(slices.Compare(r.types, o.types), slices.Compare(r.keys, o.keys)) < 0
}

func (idx *Index) shortestPath(ctx context.Context, from, to string, maxHops int) (*core.Path, error) {
	for _, key := range []string{from, to} {
		entity, err := idx.lookupEntity(ctx, key)
		if err != nil || entity == nil {
			return nil, err
		}
	}
	if from == to {
		return idx.toPath(ctx, &route{keys: []string{from}})
	}

	edges := newEdgeCache()
	best := map[string]*route{from: {keys: []string{from}}}
	frontier := []string{from}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		layer := make(map[string]*route)
		for _, key := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			adjacent, err := edges.get(ctx, idx.repo, key)
			if err != nil {
				return nil, err
			}
			current := best[key]
			for _, e := range adjacent {
				if _, settled := best[e.Neighbor]; settled {
					continue
				}
				candidate := &route{
					keys:  append(slices.Clone(current.keys), e.Neighbor),
					types: append(slices.Clone(current.types), e.Type),
				}
				if existing, ok := layer[e.Neighbor]; !ok || candidate.less(existing) {
					layer[e.Neighbor] = candidate
				}
			}
		}

		if r, ok := layer[to]; ok {
			return idx.toPath(ctx, r)
		}

		frontier = frontier[:0]
		for key, r := range layer {
			best[key] = r
			frontier = append(frontier, key)
		}
		slices.Sort(frontier)
	}

	return nil, nil
}

func (idx *Index) toPath(ctx context.Context, r *route) (*core.Path, error) {
	entities, err := idx.repo.GetEntities(ctx, r.keys...)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*core.Entity, len(entities))
	for _, e := range entities {
		byKey[e.Key()] = e
	}
	return &core.Path{
		Entities:      namesOf(r.keys, byKey),
		Relationships: append([]string{}, r.types...),
	}, nil
}

// Subgraph returns the union of the anchors' neighborhoods within maxDepth
// hops, together with every relationship whose endpoints both lie in it.
// Unknown anchors contribute nothing.
func (idx *Index) Subgraph(ctx context.Context, anchors []string, maxDepth int) (*core.Subgraph, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sub, err := idx.subgraph(ctx, anchors, maxDepth)
	if err != nil {
		return nil, core.Unavailable(core.ErrGraphUnavailable, err)
	}
	return sub, nil
}

func (idx *Index) subgraph(ctx context.Context, anchors []string, maxDepth int) (*core.Subgraph, error) {
	edges := newEdgeCache()
	nodes := make(map[string]core.Entity)

	for _, anchor := range anchors {
		related, err := idx.related(ctx, core.NormalizeName(anchor), maxDepth, edges)
		if err != nil {
			return nil, err
		}
		for _, r := range related {
			nodes[r.Entity.Key()] = r.Entity
		}
	}

	keys := make([]string, 0, len(nodes))
	for key := range nodes {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	sub := &core.Subgraph{Entities: make([]core.Entity, 0, len(keys))}
	for _, key := range keys {
		sub.Entities = append(sub.Entities, nodes[key])

		adjacent, err := edges.get(ctx, idx.repo, key)
		if err != nil {
			return nil, err
		}
		for _, e := range adjacent {
			if _, inside := nodes[e.Neighbor]; !e.Outgoing || !inside {
				continue
			}
			rel, err := idx.repo.GetRelationship(ctx, e.Relationship(key))
			if errors.Is(err, storage.ErrNotFound) {
				idx.logger.Warn("adjacency references missing relationship", "entity", key, "neighbor", e.Neighbor, "type", e.Type)
				continue
			}
			if err != nil {
				return nil, err
			}
			sub.Relationships = append(sub.Relationships, *rel)
		}
	}

	return sub, nil
}

// edgeCache memoizes adjacency lookups for the duration of one traversal.
type edgeCache struct {
	edges map[string][]storage.Edge
}

func newEdgeCache() *edgeCache {
	return &edgeCache{edges: make(map[string][]storage.Edge)}
}

func (c *edgeCache) get(ctx context.Context, repo storage.GraphRepository, key string) ([]storage.Edge, error) {
	if edges, ok := c.edges[key]; ok {
		return edges, nil
	}
	edges, err := repo.Edges(ctx, key)
	if err != nil {
		return nil, err
	}
	c.edges[key] = edges
	return edges, nil
}

func namesOf(keys []string, byKey map[string]*core.Entity) []string {
	names := make([]string, len(keys))
	for i, key := range keys {
		if e, ok := byKey[key]; ok {
			names[i] = e.Name
		} else {
			names[i] = key
		}
	}
	return names
}
