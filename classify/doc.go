// Package classify decides how a query should be answered.
//
// A Classifier maps a query to a core.QueryAnalysis: its category, the
// retrieval strategy derived from that category, and the entities it names.
// Three policies are provided. Heuristic uses keyword markers and never fails.
// LLM delegates to an ai.QueryClassifier. Hybrid tries the LLM first, falls
// back to the heuristic on any failure and caches successful answers.
package classify
