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


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/poiesic/graphrag/core"
)

func marshal[T any](s mus.Serializer[T], v T) []byte {
	buf := make([]byte, s.Size(v))
	s.Marshal(v, buf)
	return buf
}

// unmarshal decodes one record and rejects trailing bytes.
func unmarshal[T any](s mus.Serializer[T], kind string, data []byte) (*T, error) {
	v, n, err := s.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerializationFailed, kind, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrSerializationFailed, kind, len(data)-n)
	}
	return &v, nil
}

func MarshalChunk(chunk *core.Chunk) []byte {
	return marshal(core.ChunkMUS, *chunk)
}

func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	return unmarshal(core.ChunkMUS, "chunk", data)
}

func MarshalEntity(entity *core.Entity) []byte {
	return marshal(core.EntityMUS, *entity)
}

func UnmarshalEntity(data []byte) (*core.Entity, error) {
	return unmarshal(core.EntityMUS, "entity", data)
}

func MarshalRelationship(rel *core.Relationship) []byte {
	return marshal(core.RelationshipMUS, *rel)
}

func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	return unmarshal(core.RelationshipMUS, "relationship", data)
}

func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	return marshal(core.CheckpointMUS, *checkpoint)
}

func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal(core.CheckpointMUS, "checkpoint", data)
}
