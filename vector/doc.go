// Package vector implements the semantic half of retrieval: a cosine
// k-nearest-neighbor index over chunk embeddings.
//
// Relevance is 1 - d/2 for cosine distance d, so identical directions score 1,
// orthogonal ones 0.5 and opposite ones 0. Ties are broken by insertion order.
package vector
