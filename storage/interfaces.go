package storage

import (
	"context"

	"github.com/poiesic/graphrag/core"
)

// Repository provides operations shared by all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Reset removes every record owned by the repository.
	Reset(ctx context.Context) error

	// Close releases repository resources. It does not close the backend.
	Close() error
}

// ChunkRepository stores text chunks and their embeddings.
type ChunkRepository interface {
	Repository

	// PutChunks inserts or overwrites chunks keyed by ID.
	// New chunks receive an Ordinal from a sequence and an InsertedAt timestamp.
	// Overwrites keep the stored Ordinal and InsertedAt and refresh UpdatedAt.
	// Returns the chunks with storage fields populated.
	PutChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id string) (*core.Chunk, error)

	// GetChunks retrieves chunks by ID in argument order.
	// Missing IDs are skipped without error.
	GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error)

	// GetChunksAfter returns up to limit chunks with Ordinal > after, in Ordinal order.
	GetChunksAfter(ctx context.Context, after uint64, limit int) ([]*core.Chunk, error)

	// ScanChunks calls fn for every chunk in Ordinal order.
	// Iteration stops at the first error fn returns.
	ScanChunks(ctx context.Context, fn func(*core.Chunk) error) error

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// Edge is one adjacency entry of an entity.
type Edge struct {
	// Neighbor is the normalized key of the entity at the other end.
	Neighbor string
	// Type is the normalized relationship type.
	Type string
	// Outgoing is true when the entity is the relationship's source.
	Outgoing bool
}

// Relationship returns the key of the relationship this edge belongs to,
// seen from the entity with the given key.
func (e Edge) Relationship(from string) core.RelationshipKey {
	if e.Outgoing {
		return core.RelationshipKey{Source: from, Target: e.Neighbor, Type: e.Type}
	}
	return core.RelationshipKey{Source: e.Neighbor, Target: from, Type: e.Type}
}

// GraphRepository stores entities and relationships.
// Entities are keyed by core.NormalizeName; relationships by core.RelationshipKey.
type GraphRepository interface {
	Repository

	// PutEntity writes an entity under its normalized key, replacing any stored value.
	PutEntity(ctx context.Context, entity *core.Entity) error

	// GetEntity retrieves an entity by normalized key.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, key string) (*core.Entity, error)

	// GetEntities retrieves entities by key, skipping missing keys.
	GetEntities(ctx context.Context, keys ...string) ([]*core.Entity, error)

	// PutRelationship writes a relationship and its adjacency entries,
	// replacing any stored value with the same key.
	PutRelationship(ctx context.Context, rel *core.Relationship) error

	// GetRelationship retrieves a relationship by key.
	// Returns ErrNotFound if the relationship doesn't exist.
	GetRelationship(ctx context.Context, key core.RelationshipKey) (*core.Relationship, error)

	// Edges returns the adjacency entries of an entity, ordered by neighbor then type.
	Edges(ctx context.Context, key string) ([]Edge, error)

	// ScanEntities calls fn for every entity in key order.
	ScanEntities(ctx context.Context, fn func(*core.Entity) error) error

	// ScanRelationships calls fn for every relationship in key order.
	ScanRelationships(ctx context.Context, fn func(*core.Relationship) error) error
}

// CheckpointRepository persists progress for resumable batch processors.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, stamping UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}
