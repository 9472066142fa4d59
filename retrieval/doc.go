// Package retrieval answers queries by combining semantic search over chunks
// with traversal of the entity graph.
//
// A Retriever classifies the query (unless told otherwise), runs the vector
// branch, the graph branch or both, fuses the candidates and ranks them.
// Chunks found by both branches are corroborated: they receive the higher of
// the two scores plus a bonus proportional to the lower one.
//
// When one branch of a hybrid query fails the other's results are returned
// with Response.Degraded set, so callers can decide whether partial evidence
// is good enough.
//
// Basic usage:
//
//	r, _ := retrieval.NewRetriever(vectorIndex, graphIndex, classifier)
//	resp, err := r.Retrieve(ctx, "How does BERT differ from GPT?")
//	for _, res := range resp.Results {
//	    fmt.Println(res.SourceChunkID, res.RelevanceScore, res.Origin)
//	}
package retrieval
