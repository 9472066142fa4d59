package badger

import (
	"bytes"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
//
// Each relationship is stored once under its key and mirrored as two
// adjacency entries, one per endpoint, so neighbor scans and degree
// lookups are prefix iterations.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	return &GraphRepository{
		backend: backend,
	}, nil
}

// Close releases resources. GraphRepository has no resources to release.
func (r *GraphRepository) Close() error {
	return nil
}

// Reset removes all entities, relationships, and adjacency entries.
func (r *GraphRepository) Reset(ctx context.Context) error {
	return r.backend.DeletePrefix(
		[]byte(entityPrefix),
		[]byte(relationshipPrefix),
		[]byte(adjacencyPrefix),
	)
}

// PutEntity writes an entity under its normalized key.
func (r *GraphRepository) PutEntity(ctx context.Context, entity *core.Entity) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEntityKey(entity.Key()), storage.MarshalEntity(entity)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves an entity by normalized key.
func (r *GraphRepository) GetEntity(ctx context.Context, key string) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, makeEntityKey(key))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntities retrieves entities by key, skipping missing keys.
func (r *GraphRepository) GetEntities(ctx context.Context, keys ...string) ([]*core.Entity, error) {
	var result []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			entity, err := readEntity(tx, makeEntityKey(key))
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	}, false)
	return result, err
}

// PutRelationship writes a relationship and both adjacency entries.
func (r *GraphRepository) PutRelationship(ctx context.Context, rel *core.Relationship) error {
	key := rel.Key()
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRelationshipKey(key), storage.MarshalRelationship(rel)); err != nil {
			return err
		}

		out := storage.Edge{Neighbor: key.Target, Type: key.Type, Outgoing: true}
		if err := tx.Set(makeAdjacencyKey(key.Source, out), nil); err != nil {
			return err
		}
		in := storage.Edge{Neighbor: key.Source, Type: key.Type, Outgoing: false}
		if err := tx.Set(makeAdjacencyKey(key.Target, in), nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRelationship retrieves a relationship by key.
func (r *GraphRepository) GetRelationship(ctx context.Context, key core.RelationshipKey) (*core.Relationship, error) {
	var result *core.Relationship
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRelationship(tx, makeRelationshipKey(key))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// Edges returns the adjacency entries of an entity.
func (r *GraphRepository) Edges(ctx context.Context, key string) ([]storage.Edge, error) {
	var edges []storage.Edge
	prefix := makeAdjacencyPrefix(key)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			suffix := bytes.TrimPrefix(iter.Item().Key(), prefix)
			edge, ok := parseAdjacencySuffix(suffix)
			if !ok {
				r.backend.logger.Warn("skipping malformed adjacency key", "entity", key)
				continue
			}
			edges = append(edges, edge)
		}
		return nil
	}, false)
	return edges, err
}

// ScanEntities calls fn for every entity in key order.
func (r *GraphRepository) ScanEntities(ctx context.Context, fn func(*core.Entity) error) error {
	return r.scan(ctx, []byte(entityPrefix), func(val []byte) error {
		entity, err := storage.UnmarshalEntity(val)
		if err != nil {
			return err
		}
		return fn(entity)
	})
}

// ScanRelationships calls fn for every relationship in key order.
func (r *GraphRepository) ScanRelationships(ctx context.Context, fn func(*core.Relationship) error) error {
	return r.scan(ctx, []byte(relationshipPrefix), func(val []byte) error {
		rel, err := storage.UnmarshalRelationship(val)
		if err != nil {
			return err
		}
		return fn(rel)
	})
}

func (r *GraphRepository) scan(ctx context.Context, prefix []byte, fn func(val []byte) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := iter.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// readEntity reads an entity within a transaction.
// Returns nil, nil if the entity doesn't exist.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entity, unmarshalErr = storage.UnmarshalEntity(val)
		return unmarshalErr
	})
	return entity, err
}

func readRelationship(tx *badger.Txn, key []byte) (*core.Relationship, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rel *core.Relationship
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		rel, unmarshalErr = storage.UnmarshalRelationship(val)
		return unmarshalErr
	})
	return rel, err
}
