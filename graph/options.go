package graph

import (
	"fmt"
	"log/slog"
)

// DefaultMaxPathHops is the hop limit FindPath uses when none is given.
const DefaultMaxPathHops = 6

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger.With("component", "graph")
		return nil
	}
}

// WithMaxRelated caps how many entities RelatedEntities expands to, not
// counting the anchor. Zero means unlimited.
func WithMaxRelated(n int) Option {
	return func(idx *Index) error {
		if n < 0 {
			return fmt.Errorf("%w: max related cannot be negative, got %d", ErrInvalidOption, n)
		}
		idx.maxRelated = n
		return nil
	}
}

// WithMaxPathHops sets the default hop limit for FindPath.
func WithMaxPathHops(n int) Option {
	return func(idx *Index) error {
		if n < 1 {
			return fmt.Errorf("%w: max path hops must be positive, got %d", ErrInvalidOption, n)
		}
		idx.maxPathHops = n
		return nil
	}
}
