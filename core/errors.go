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


package core

import (
	"context"
	"errors"
	"fmt"
)

// Retrieval error kinds
var (
	// ErrEmbeddingUnavailable indicates the embedding capability failed.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGraphUnavailable indicates the graph store could not be reached.
	ErrGraphUnavailable = errors.New("graph unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not be reached.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrInvalidStrategy indicates an unknown retrieval strategy.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrTimeout indicates a deadline expired on a blocking sub-call.
	ErrTimeout = errors.New("timeout")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelationship indicates a Relationship failed validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrInvalidCategory indicates an unknown query category.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyID indicates the chunk ID is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyName indicates an entity or endpoint name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidName indicates a name contains a NUL byte.
	ErrInvalidName = errors.New("name cannot contain NUL")

	// ErrEmptyRelationshipType indicates the relationship type is empty.
	ErrEmptyRelationshipType = errors.New("relationship type cannot be empty")

	// ErrDimensionMismatch indicates an embedding has the wrong dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidK indicates a non-positive result count.
	ErrInvalidK = errors.New("k must be positive")
)

// Unavailable wraps err in the given error kind. Context deadline and
// cancellation errors become ErrTimeout instead, so callers can tell a slow
// collaborator from a broken one.
func Unavailable(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, kind) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
