// Package assemble turns ranked retrieval results and a subgraph into the
// context block handed to answer synthesis.
//
// Usage:
//
//	resp, sub, err := retriever.RetrieveWithContext(ctx, query)
//	if err != nil {
//	    return err
//	}
//	prompt := assemble.Assemble(query, resp.Results, sub).Render()
package assemble
