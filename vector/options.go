package vector

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultBatchSize bounds how many chunks are embedded and persisted per call.
	DefaultBatchSize = 100

	// DefaultExactSearchLimit is the index size up to which searches scan every vector.
	DefaultExactSearchLimit = 2048

	// DefaultOverfetch multiplies k when asking the ANN graph for candidates.
	DefaultOverfetch = 4

	// DefaultQueryCacheSize is the number of query embeddings kept in memory.
	DefaultQueryCacheSize = 512
)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger.With("component", "vector")
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per embedder call.
func WithBatchSize(n int) Option {
	return func(idx *Index) error {
		if n < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOption, n)
		}
		idx.batchSize = n
		return nil
	}
}

// WithExactSearchLimit sets the size up to which searches are exhaustive.
// Zero forces the ANN graph for every search.
func WithExactSearchLimit(n int) Option {
	return func(idx *Index) error {
		if n < 0 {
			return fmt.Errorf("%w: exact search limit cannot be negative, got %d", ErrInvalidOption, n)
		}
		idx.exactLimit = n
		return nil
	}
}

// WithOverfetch sets the candidate multiplier for ANN searches.
func WithOverfetch(n int) Option {
	return func(idx *Index) error {
		if n < 1 {
			return fmt.Errorf("%w: overfetch must be positive, got %d", ErrInvalidOption, n)
		}
		idx.overfetch = n
		return nil
	}
}

// WithDimension fixes the embedding dimension. When unset, the first
// indexed vector decides it.
func WithDimension(dim int) Option {
	return func(idx *Index) error {
		if dim < 0 {
			return fmt.Errorf("%w: dimension cannot be negative, got %d", ErrInvalidOption, dim)
		}
		idx.configuredDim = dim
		idx.dimension = dim
		return nil
	}
}

// WithQueryCacheSize sets the number of cached query embeddings.
// Zero disables the cache.
func WithQueryCacheSize(n int) Option {
	return func(idx *Index) error {
		if n < 0 {
			return fmt.Errorf("%w: cache size cannot be negative, got %d", ErrInvalidOption, n)
		}
		idx.queryCacheSize = n
		return nil
	}
}
