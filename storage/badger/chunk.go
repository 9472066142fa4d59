package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend    *Backend
	ordinalSeq *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	seq, err := backend.GetSequence(chunkOrdinalSeq)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{
		backend:    backend,
		ordinalSeq: seq,
	}, nil
}

// Close releases the ordinal sequence.
func (r *ChunkRepository) Close() error {
	return r.ordinalSeq.Release()
}

// Reset removes all chunks and the ordinal index.
func (r *ChunkRepository) Reset(ctx context.Context) error {
	return r.backend.DeletePrefix([]byte(chunkPrefix), []byte(chunkOrdinalPrefix))
}

// PutChunks inserts or overwrites chunks keyed by ID.
func (r *ChunkRepository) PutChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := makeChunkKey(chunk.ID)
			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}

			if old != nil {
				chunk.Ordinal = old.Ordinal
				chunk.InsertedAt = old.InsertedAt
			} else {
				ordinal, err := r.nextOrdinal()
				if err != nil {
					return err
				}
				chunk.Ordinal = ordinal
				chunk.InsertedAt = now
			}
			chunk.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeChunkOrdinalKey(chunk.Ordinal), []byte(chunk.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

func (r *ChunkRepository) nextOrdinal() (uint64, error) {
	next, err := r.ordinalSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		return r.ordinalSeq.Next()
	}
	return next, nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, makeChunkKey(id))
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

// GetChunks retrieves chunks by ID, skipping missing ones.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetChunksAfter returns up to limit chunks with Ordinal > after.
func (r *ChunkRepository) GetChunksAfter(ctx context.Context, after uint64, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	var result []*core.Chunk
	err := r.scanOrdinals(ctx, after+1, func(chunk *core.Chunk) error {
		result = append(result, chunk)
		if len(result) >= limit {
			return errStopScan
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		err = nil
	}
	return result, err
}

// ScanChunks calls fn for every chunk in Ordinal order.
func (r *ChunkRepository) ScanChunks(ctx context.Context, fn func(*core.Chunk) error) error {
	return r.scanOrdinals(ctx, 0, fn)
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	return r.backend.CountPrefix([]byte(chunkPrefix))
}

var errStopScan = errors.New("stop scan")

func (r *ChunkRepository) scanOrdinals(ctx context.Context, from uint64, fn func(*core.Chunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkOrdinalPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkOrdinalKey(from)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var id []byte
			err := iter.Item().Value(func(val []byte) error {
				id = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return err
			}

			chunk, err := readChunk(tx, makeChunkKey(string(id)))
			if err != nil {
				return err
			}
			// Orphaned index entry left behind by a reset in progress.
			if chunk == nil {
				continue
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// readChunk is a helper function to read a chunk within a transaction.
// Returns nil, nil if the chunk doesn't exist.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}
