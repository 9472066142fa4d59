package retrieval

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/graphrag/core"
)

const (
	// DefaultNResults is the number of results returned when none is requested.
	DefaultNResults = 5

	// DefaultGraphDepth is the traversal depth used when none is requested.
	DefaultGraphDepth = 2

	// DefaultOperationTimeout bounds each branch of a query.
	DefaultOperationTimeout = 30 * time.Second

	// DefaultCorroborationBonus weights the lower score of a chunk found by both branches.
	DefaultCorroborationBonus = 0.1

	// DefaultDegreeDecay damps the graph score of highly connected entities.
	DefaultDegreeDecay = 0.1

	// DefaultCandidateMultiplier scales how many candidates each hybrid branch draws.
	DefaultCandidateMultiplier = 2
)

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// WithDefaultNResults sets the result count used when a call doesn't specify one.
func WithDefaultNResults(n int) Option {
	return func(r *Retriever) error {
		if n < 1 {
			return fmt.Errorf("%w: default n_results must be positive, got %d", ErrInvalidOption, n)
		}
		r.defaultNResults = n
		return nil
	}
}

// WithDefaultGraphDepth sets the traversal depth used when a call doesn't specify one.
func WithDefaultGraphDepth(depth int) Option {
	return func(r *Retriever) error {
		if depth < 0 {
			return fmt.Errorf("%w: default graph depth cannot be negative, got %d", ErrInvalidOption, depth)
		}
		r.defaultGraphDepth = depth
		return nil
	}
}

// WithOperationTimeout bounds each branch. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(r *Retriever) error {
		if d < 0 {
			return fmt.Errorf("%w: operation timeout cannot be negative, got %s", ErrInvalidOption, d)
		}
		r.operationTimeout = d
		return nil
	}
}

// WithCorroborationBonus sets the fusion bonus, in [0, 1].
func WithCorroborationBonus(bonus float64) Option {
	return func(r *Retriever) error {
		if bonus < 0 || bonus > 1 {
			return fmt.Errorf("%w: corroboration bonus must be in [0, 1], got %g", ErrInvalidOption, bonus)
		}
		r.corroborationBonus = bonus
		return nil
	}
}

// WithDegreeDecay sets how strongly entity degree damps graph scores.
func WithDegreeDecay(decay float64) Option {
	return func(r *Retriever) error {
		if decay < 0 {
			return fmt.Errorf("%w: degree decay cannot be negative, got %g", ErrInvalidOption, decay)
		}
		r.degreeDecay = decay
		return nil
	}
}

// WithCandidateMultiplier sets how many candidates per result each hybrid branch draws.
func WithCandidateMultiplier(m int) Option {
	return func(r *Retriever) error {
		if m < 1 {
			return fmt.Errorf("%w: candidate multiplier must be positive, got %d", ErrInvalidOption, m)
		}
		r.candidateMultiplier = m
		return nil
	}
}

// WithCategoryDefaults makes unset result counts and depths follow the
// query category instead of the retriever defaults.
func WithCategoryDefaults(enabled bool) Option {
	return func(r *Retriever) error {
		r.categoryDefaults = enabled
		return nil
	}
}

// request holds the per-call settings.
type request struct {
	strategy     core.Strategy
	nResults     int
	nSet         bool
	graphDepth   int
	depthSet     bool
	analysis     *core.QueryAnalysis
	minRelevance float64
	monitor      Monitor
}

// RetrieveOption adjusts a single Retrieve call.
type RetrieveOption func(*request)

// WithStrategy forces a strategy, overriding the classifier.
func WithStrategy(s core.Strategy) RetrieveOption {
	return func(req *request) {
		req.strategy = s
	}
}

// WithNResults sets how many results to return. n must be positive.
func WithNResults(n int) RetrieveOption {
	return func(req *request) {
		req.nResults = n
		req.nSet = true
	}
}

// WithGraphDepth sets the traversal depth. Negative values are treated as 0.
func WithGraphDepth(depth int) RetrieveOption {
	return func(req *request) {
		req.graphDepth = max(depth, 0)
		req.depthSet = true
	}
}

// WithAnalysis supplies a precomputed analysis, skipping classification.
func WithAnalysis(analysis *core.QueryAnalysis) RetrieveOption {
	return func(req *request) {
		req.analysis = analysis
	}
}

// WithMinRelevance drops vector matches scoring below threshold.
func WithMinRelevance(threshold float64) RetrieveOption {
	return func(req *request) {
		req.minRelevance = threshold
	}
}

// WithMonitor observes the call.
func WithMonitor(m Monitor) RetrieveOption {
	return func(req *request) {
		if m != nil {
			req.monitor = m
		}
	}
}
