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


package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/graphrag/core"
)

var (
	// ErrQueryClassifierRequired is returned when an LLM classifier is built without a capability.
	ErrQueryClassifierRequired = errors.New("query classifier required")

	// ErrClassificationFailed indicates the classification capability returned an error.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrInvalidClassification indicates the capability answered with an unusable result.
	ErrInvalidClassification = errors.New("invalid classification")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid classifier option")
)

// Classifier analyzes a query to choose a retrieval strategy.
type Classifier interface {
	Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error)
}

var (
	_ Classifier = (*Heuristic)(nil)
	_ Classifier = (*LLM)(nil)
	_ Classifier = (*Hybrid)(nil)
)

// DefaultCacheSize is the number of analyses Hybrid keeps.
const DefaultCacheSize = 256

type settings struct {
	logger    *slog.Logger
	cacheSize int
}

// Option configures a classifier.
type Option func(*settings) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCacheSize sets how many analyses Hybrid caches. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(s *settings) error {
		if n < 0 {
			return fmt.Errorf("%w: cache size cannot be negative, got %d", ErrInvalidOption, n)
		}
		s.cacheSize = n
		return nil
	}
}

func applyOptions(opts []Option) (*settings, error) {
	s := &settings{
		logger:    slog.Default(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "classifier")
	return s, nil
}
