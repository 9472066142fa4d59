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


package badger

// Stores bundles the repositories sharing one backend.
type Stores struct {
	Backend     *Backend
	Chunks      *ChunkRepository
	Graph       *GraphRepository
	Checkpoints *CheckpointRepository
}

// OpenStores opens a backend and creates every repository on it.
// With inMemory set the path is ignored.
func OpenStores(path string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	graph, err := NewGraphRepository(backend)
	if err != nil {
		chunks.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:     backend,
		Chunks:      chunks,
		Graph:       graph,
		Checkpoints: NewCheckpointRepository(backend),
	}, nil
}

// NewMemoryStores creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}

// Close releases the repositories and then the backend.
func (s *Stores) Close() error {
	s.Chunks.Close()
	s.Graph.Close()
	return s.Backend.Close()
}
