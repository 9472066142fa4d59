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


// Package storage defines the persistence contracts for the retrieval engine.
//
// Two repositories back the indexes:
//
//   - ChunkRepository: text chunks with their embeddings, ordered by insertion
//   - GraphRepository: entities, typed relationships, and an adjacency index
//
// A CheckpointRepository records progress for resumable batch jobs such as
// re-embedding.
//
// The badger subpackage implements all three on a single BadgerDB instance:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	chunks, err := badger.NewChunkRepository(backend)
//
// Tests use an in-memory instance:
//
//	stores, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Read-modify-write merges
// are serialized by the callers (see the graph package), not by the repositories.
package storage
