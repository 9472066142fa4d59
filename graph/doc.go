// Package graph implements the relational half of retrieval: an entity and
// relationship index supporting neighborhood expansion, shortest paths and
// subgraph extraction.
//
// Entities are identified by their normalized name and relationships by
// (source, target, type). Adding the same entity or relationship twice merges
// the two records, so ingestion can be replayed safely. Traversals ignore edge
// direction.
//
// Basic usage:
//
//	stores, _ := badger.OpenStores("/path/to/db", false)
//	idx, _ := graph.NewIndex(stores.Graph)
//
//	idx.AddEntities(ctx, core.Entity{Name: "BERT", Type: core.EntityTypeTechnology})
//	idx.AddRelationships(ctx, core.Relationship{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF"})
//
//	related, _ := idx.RelatedEntities(ctx, "Transformer", 2)
//	path, _ := idx.FindPath(ctx, "BERT", "GPT", 0)
package graph
