// Package ingestion loads chunks into the vector and graph indexes.
//
// The Indexer adds chunks to the vector index in batches and extracts
// entities and relationships from each chunk on a worker pool, merging
// them into the graph index with the chunk as provenance.
//
// The Reembedder recomputes every stored embedding with the configured
// embedder. It checkpoints after each batch so an interrupted run resumes
// where it stopped, and retries embedding calls with exponential backoff.
package ingestion
