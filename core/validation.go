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
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Content must not be blank
//
// NOT validated:
//   - Embedding (computed by the vector index when missing)
//   - Ordinal (assigned by the store)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must normalize to a non-empty key
//   - Name must not contain a NUL byte
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Key() == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyName)
	}

	if hasNUL(entity.Name) {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrInvalidName)
	}

	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
//
// Validation rules:
//   - Source and Target must normalize to non-empty keys
//   - Type must not be blank
//   - No name may contain a NUL byte
//
// Endpoints are not required to exist; the graph index creates stubs.
func ValidateRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}

	key := rel.Key()
	if key.Source == "" || key.Target == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrEmptyName)
	}

	if key.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrEmptyRelationshipType)
	}

	if hasNUL(rel.Source) || hasNUL(rel.Target) || hasNUL(rel.Type) {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrInvalidName)
	}

	return nil
}

// NUL separates the components of storage keys.
func hasNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// ValidateEmbedding checks a vector against the expected dimension.
// A dimension of zero accepts any non-empty vector.
func ValidateEmbedding(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if dimension > 0 && len(vec) != dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dimension, len(vec))
	}
	return nil
}
