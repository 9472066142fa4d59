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


package graph

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// Index is the entity graph used by relational retrieval.
//
// Index is safe for concurrent use. Merges of the same entity or relationship
// are serialized through a striped mutex; Reset excludes every other call.
type Index struct {
	repo        storage.GraphRepository
	logger      *slog.Logger
	maxRelated  int
	maxPathHops int

	mu      sync.RWMutex
	stripes stripedMutex
}

// NewIndex creates a graph index over repo.
func NewIndex(repo storage.GraphRepository, opts ...Option) (*Index, error) {
	if repo == nil {
		return nil, ErrGraphRepositoryRequired
	}

	idx := &Index{
		repo:        repo,
		logger:      slog.Default().With("component", "graph"),
		maxPathHops: DefaultMaxPathHops,
	}

	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

// AddEntities upserts entities, merging each with any stored entity of the
// same normalized name. The first surface form seen for a name is kept.
// Returns the number of entities written.
func (idx *Index) AddEntities(ctx context.Context, entities ...core.Entity) (int, error) {
	for i := range entities {
		if err := core.ValidateEntity(&entities[i]); err != nil {
			return 0, err
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	written := 0
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return written, core.Unavailable(core.ErrGraphUnavailable, err)
		}
		if err := idx.mergeEntity(ctx, entity); err != nil {
			return written, core.Unavailable(core.ErrGraphUnavailable, err)
		}
		written++
	}

	idx.logger.Debug("entities added", "count", written)
	return written, nil
}

func (idx *Index) mergeEntity(ctx context.Context, incoming core.Entity) error {
	key := incoming.Key()
	unlock := idx.stripes.lock(key)
	defer unlock()

	base, err := idx.lookupEntity(ctx, key)
	if err != nil {
		return err
	}
	if base == nil {
		base = &core.Entity{Name: displayName(incoming.Name)}
	}

	merged := core.MergeEntity(*base, incoming)
	return idx.repo.PutEntity(ctx, &merged)
}

// AddRelationships upserts relationships, merging each with any stored
// relationship of the same (source, target, type). Endpoints that are not yet
// known are created as UNKNOWN stub entities carrying the relationship's chunks.
// Returns the number of relationships written.
func (idx *Index) AddRelationships(ctx context.Context, rels ...core.Relationship) (int, error) {
	for i := range rels {
		if err := core.ValidateRelationship(&rels[i]); err != nil {
			return 0, err
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	written := 0
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return written, core.Unavailable(core.ErrGraphUnavailable, err)
		}
		if err := idx.mergeRelationship(ctx, rel); err != nil {
			return written, core.Unavailable(core.ErrGraphUnavailable, err)
		}
		written++
	}

	idx.logger.Debug("relationships added", "count", written)
	return written, nil
}

func (idx *Index) mergeRelationship(ctx context.Context, incoming core.Relationship) error {
	if err := idx.ensureEntity(ctx, incoming.Source, incoming.SourceChunkIDs); err != nil {
		return err
	}
	if err := idx.ensureEntity(ctx, incoming.Target, incoming.SourceChunkIDs); err != nil {
		return err
	}

	key := incoming.Key()
	unlock := idx.stripes.lock("rel\x00" + key.Source + "\x00" + key.Target + "\x00" + key.Type)
	defer unlock()

	stored, err := idx.repo.GetRelationship(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		stored = &core.Relationship{
			Source: displayName(incoming.Source),
			Target: displayName(incoming.Target),
			Type:   key.Type,
		}
	case err != nil:
		return err
	}

	merged := core.MergeRelationship(*stored, incoming)
	return idx.repo.PutRelationship(ctx, &merged)
}

// ensureEntity creates a stub for name unless an entity already exists.
func (idx *Index) ensureEntity(ctx context.Context, name string, chunkIDs []string) error {
	key := core.NormalizeName(name)
	unlock := idx.stripes.lock(key)
	defer unlock()

	stored, err := idx.lookupEntity(ctx, key)
	if err != nil || stored != nil {
		return err
	}

	idx.logger.Debug("creating stub entity", "name", name)
	return idx.repo.PutEntity(ctx, &core.Entity{
		Name:           displayName(name),
		Type:           core.EntityTypeUnknown,
		SourceChunkIDs: core.SortedChunkIDs(chunkIDs),
	})
}

// lookupEntity returns nil, nil when the entity does not exist.
func (idx *Index) lookupEntity(ctx context.Context, key string) (*core.Entity, error) {
	entity, err := idx.repo.GetEntity(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return entity, err
}

// Entity looks up an entity by name. Returns nil if it does not exist.
func (idx *Index) Entity(ctx context.Context, name string) (*core.Entity, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entity, err := idx.lookupEntity(ctx, core.NormalizeName(name))
	if err != nil {
		return nil, core.Unavailable(core.ErrGraphUnavailable, err)
	}
	return entity, nil
}

// Stats reports entity and relationship counts and the entity type distribution.
func (idx *Index) Stats(ctx context.Context) (core.GraphStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := core.GraphStats{EntityTypes: make(map[core.EntityType]int)}

	err := idx.repo.ScanEntities(ctx, func(e *core.Entity) error {
		stats.TotalEntities++
		stats.EntityTypes[e.Type]++
		return ctx.Err()
	})
	if err != nil {
		return core.GraphStats{}, core.Unavailable(core.ErrGraphUnavailable, err)
	}

	err = idx.repo.ScanRelationships(ctx, func(*core.Relationship) error {
		stats.TotalRelationships++
		return ctx.Err()
	})
	if err != nil {
		return core.GraphStats{}, core.Unavailable(core.ErrGraphUnavailable, err)
	}

	return stats, nil
}

// Reset removes every entity and relationship.
func (idx *Index) Reset(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.repo.Reset(ctx); err != nil {
		return core.Unavailable(core.ErrGraphUnavailable, err)
	}
	idx.logger.Info("graph reset")
	return nil
}

func displayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
