// Package mock provides test doubles for the ai capabilities.
//
// Each double exposes a function field per method and counts its calls, so a
// test can script answers or failures without an AI service:
//
//	embedder := &mock.MockEmbedder{EmbedTextFunc: mock.BagOfWords(256)}
//	classifier := &mock.MockQueryClassifier{
//	    ClassifyQueryFunc: func(ctx context.Context, q string) (*ai.QueryClassification, error) {
//	        return &ai.QueryClassification{Category: "COMPARATIVE"}, nil
//	    },
//	}
//	provider := mock.NewMockProviderWithServices(embedder, classifier, mock.NewMockEntityExtractor())
//
// Without a function set:
//
//   - MockEmbedder returns HashVector of the text
//   - MockQueryClassifier fails with ErrNoModel, like an unreachable model
//   - MockEntityExtractor returns capitalized words as CONCEPT entities
//
// BagOfWords gives an embedding function whose similarities follow shared
// words, for tests that need meaningful rankings.
package mock
