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


package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryClassifier asks a language model to categorize a retrieval query.
// Implementations must be thread-safe for concurrent use.
type QueryClassifier interface {
	// ClassifyQuery returns the model's raw answer. Callers validate the
	// category; an unrecognized value is not an error at this layer.
	ClassifyQuery(ctx context.Context, query string) (*QueryClassification, error)
}

// EntityExtractor pulls entities and relationships out of a chunk of text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractGraph returns the entities and relationships mentioned in text.
	// Returns an empty Extraction if nothing is found.
	ExtractGraph(ctx context.Context, text string) (*Extraction, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// QueryClassifier returns the query classification service.
	QueryClassifier() QueryClassifier

	// EntityExtractor returns the graph extraction service.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
