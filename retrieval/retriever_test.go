package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/graphrag/ai/mock"
	"github.com/poiesic/graphrag/classify"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/graph"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/poiesic/graphrag/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	vector *vector.Index
	graph  *graph.Index
}

// newFixture indexes three chunks about the Transformer family and the
// matching entities: BERT and GPT are both variants of Transformer.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := &mock.MockEmbedder{EmbedTextFunc: mock.BagOfWords(512)}
	vec, err := vector.NewIndex(ctx, stores.Chunks, embedder)
	require.NoError(t, err)
	g, err := graph.NewIndex(stores.Graph)
	require.NoError(t, err)

	_, err = vec.Add(ctx,
		&core.Chunk{ID: "c1", Content: "The Transformer architecture relies on self-attention"},
		&core.Chunk{ID: "c2", Content: "BERT is a bidirectional encoder built on the Transformer"},
		&core.Chunk{ID: "c3", Content: "GPT is a generative decoder built on the Transformer"},
	)
	require.NoError(t, err)

	_, err = g.AddEntities(ctx,
		core.Entity{Name: "Transformer", Type: core.EntityTypeTechnology, SourceChunkIDs: []string{"c1"}},
		core.Entity{Name: "BERT", Type: core.EntityTypeTechnology, SourceChunkIDs: []string{"c2"}},
		core.Entity{Name: "GPT", Type: core.EntityTypeTechnology, SourceChunkIDs: []string{"c3"}},
	)
	require.NoError(t, err)
	_, err = g.AddRelationships(ctx,
		core.Relationship{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF", SourceChunkIDs: []string{"c2"}},
		core.Relationship{Source: "GPT", Target: "Transformer", Type: "VARIANT_OF", SourceChunkIDs: []string{"c3"}},
	)
	require.NoError(t, err)

	return &fixture{vector: vec, graph: g}
}

// fakeGraph is a GraphIndex with injectable behavior.
type fakeGraph struct {
	RelatedEntitiesFunc func(ctx context.Context, name string, maxDepth int) ([]core.RelatedEntity, error)
	SubgraphFunc        func(ctx context.Context, anchors []string, maxDepth int) (*core.Subgraph, error)

	mu        sync.Mutex
	callCount int
}

func (f *fakeGraph) RelatedEntities(ctx context.Context, name string, maxDepth int) ([]core.RelatedEntity, error) {
	f.mu.Lock()
	f.callCount++
	f.mu.Unlock()
	if f.RelatedEntitiesFunc != nil {
		return f.RelatedEntitiesFunc(ctx, name, maxDepth)
	}
	return []core.RelatedEntity{}, nil
}

func (f *fakeGraph) Subgraph(ctx context.Context, anchors []string, maxDepth int) (*core.Subgraph, error) {
	if f.SubgraphFunc != nil {
		return f.SubgraphFunc(ctx, anchors, maxDepth)
	}
	return &core.Subgraph{}, nil
}

func (f *fakeGraph) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// fakeVector is a VectorIndex with injectable behavior.
type fakeVector struct {
	SearchFunc func(ctx context.Context, query string, k int, minRelevance float64) ([]core.RetrievalResult, error)
	ChunksFunc func(ctx context.Context, ids ...string) ([]*core.Chunk, error)
}

func (f *fakeVector) Search(ctx context.Context, query string, k int, minRelevance float64) ([]core.RetrievalResult, error) {
	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, query, k, minRelevance)
	}
	return nil, nil
}

func (f *fakeVector) Chunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	if f.ChunksFunc != nil {
		return f.ChunksFunc(ctx, ids...)
	}
	return nil, nil
}

func chunkIDs(results []core.RetrievalResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.SourceChunkID
	}
	return ids
}

func TestNewRetriever(t *testing.T) {
	f := newFixture(t)

	_, err := NewRetriever(nil, f.graph, nil)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)

	_, err = NewRetriever(f.vector, nil, nil)
	assert.ErrorIs(t, err, ErrGraphIndexRequired)

	tests := []struct {
		name string
		opt  Option
	}{
		{"zero n_results", WithDefaultNResults(0)},
		{"negative depth", WithDefaultGraphDepth(-1)},
		{"negative timeout", WithOperationTimeout(-time.Second)},
		{"bonus above one", WithCorroborationBonus(1.5)},
		{"negative decay", WithDegreeDecay(-0.1)},
		{"zero multiplier", WithCandidateMultiplier(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRetriever(f.vector, f.graph, nil, tt.opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}

	r, err := NewRetriever(f.vector, f.graph, nil, WithLogger(nil), WithCorroborationBonus(0))
	require.NoError(t, err)
	assert.NotNil(t, r.logger)
	assert.Zero(t, r.corroborationBonus)
}

func TestRetrieve_ComparativeScenario(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, classify.NewHeuristic())
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How does BERT differ from GPT?")
	require.NoError(t, err)

	assert.Equal(t, core.CategoryComparative, resp.Analysis.Category)
	assert.Equal(t, core.StrategyHybrid, resp.Strategy)
	assert.False(t, resp.Degraded)
	require.GreaterOrEqual(t, len(resp.Results), 2)

	top := resp.Results[:2]
	assert.ElementsMatch(t, []string{"c2", "c3"}, chunkIDs(top))
	for _, result := range top {
		assert.Equal(t, core.OriginBoth, result.Origin, "chunk %s", result.SourceChunkID)
		assert.NotEmpty(t, result.Content)
		assert.NotEmpty(t, result.GraphPath)
	}
	for _, result := range resp.Results[2:] {
		assert.Less(t, result.RelevanceScore, top[1].RelevanceScore)
	}
}

func TestRetrieve_GraphStrategy(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, nil)
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How is BERT related to GPT?",
		WithStrategy(core.StrategyGraph),
		WithAnalysis(&core.QueryAnalysis{
			RawQuery:    "How is BERT related to GPT?",
			Category:    core.CategoryRelational,
			KeyEntities: []string{"BERT"},
		}),
		WithGraphDepth(2),
		WithNResults(10))
	require.NoError(t, err)

	// BERT itself, then Transformer one hop out, then GPT two hops out.
	assert.Equal(t, []string{"c2", "c1", "c3"}, chunkIDs(resp.Results))
	for _, result := range resp.Results {
		assert.Equal(t, core.OriginGraph, result.Origin)
	}
	assert.Equal(t, []string{"BERT", "Transformer", "GPT"}, resp.Results[2].GraphPath)
	assert.InDelta(t, 1/(1+0.1*0.6931471805599453), resp.Results[0].RelevanceScore, 1e-9)
}

func TestRetrieve_VectorStrategy(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, nil)
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "generative decoder", WithStrategy(core.StrategyVector), WithNResults(1))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c3", resp.Results[0].SourceChunkID)
	assert.Equal(t, core.OriginVector, resp.Results[0].Origin)
	assert.Equal(t, 1, resp.NResults)
}

func TestRetrieve_VectorKeepsInsertionOrderOnTies(t *testing.T) {
	tied := &fakeVector{
		SearchFunc: func(context.Context, string, int, float64) ([]core.RetrievalResult, error) {
			return []core.RetrievalResult{
				{SourceChunkID: "zz", Content: "inserted first", RelevanceScore: 0.5},
				{SourceChunkID: "aa", Content: "inserted second", RelevanceScore: 0.5},
			}, nil
		},
	}
	r, err := NewRetriever(tied, &fakeGraph{}, nil)
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "attention", WithStrategy(core.StrategyVector))
	require.NoError(t, err)
	assert.Equal(t, []string{"zz", "aa"}, chunkIDs(resp.Results))
}

func TestRetrieve_HybridRunsBranchesConcurrently(t *testing.T) {
	// Each branch waits for the other to start, so running them one after
	// the other stalls until the branch deadline.
	vectorStarted := make(chan struct{})
	graphStarted := make(chan struct{})
	var once sync.Once

	vec := &fakeVector{
		SearchFunc: func(ctx context.Context, _ string, _ int, _ float64) ([]core.RetrievalResult, error) {
			close(vectorStarted)
			select {
			case <-graphStarted:
				return []core.RetrievalResult{{SourceChunkID: "c9", Content: "attention", RelevanceScore: 0.9}}, nil
			case <-ctx.Done():
				return nil, core.Unavailable(core.ErrEmbeddingUnavailable, ctx.Err())
			}
		},
	}
	g := &fakeGraph{
		RelatedEntitiesFunc: func(ctx context.Context, _ string, _ int) ([]core.RelatedEntity, error) {
			once.Do(func() { close(graphStarted) })
			select {
			case <-vectorStarted:
				return []core.RelatedEntity{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}

	r, err := NewRetriever(vec, g, nil, WithOperationTimeout(2*time.Second))
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How does BERT differ from GPT?",
		WithStrategy(core.StrategyHybrid),
		WithAnalysis(&core.QueryAnalysis{Category: core.CategoryComparative, KeyEntities: []string{"BERT"}}))
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.Equal(t, []string{"c9"}, chunkIDs(resp.Results))
	assert.Positive(t, g.CallCount())
}

func TestRetrieve_Validation(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Retrieve(ctx, "BERT", WithStrategy(core.Strategy(42)))
	assert.ErrorIs(t, err, core.ErrInvalidStrategy)

	_, err = r.Retrieve(ctx, "BERT", WithNResults(0))
	assert.ErrorIs(t, err, core.ErrInvalidK)

	_, err = r.Retrieve(ctx, "BERT", WithNResults(-3))
	assert.ErrorIs(t, err, core.ErrInvalidK)
}

func TestRetrieve_Limits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	relational := &core.QueryAnalysis{
		RawQuery:    "How is BERT related to GPT?",
		Category:    core.CategoryRelational,
		Strategy:    core.StrategyGraph,
		KeyEntities: []string{"BERT", "GPT"},
	}

	t.Run("configured defaults", func(t *testing.T) {
		r, err := NewRetriever(f.vector, f.graph, nil, WithDefaultNResults(7), WithDefaultGraphDepth(1))
		require.NoError(t, err)
		resp, err := r.Retrieve(ctx, relational.RawQuery, WithAnalysis(relational))
		require.NoError(t, err)
		assert.Equal(t, 7, resp.NResults)
		assert.Equal(t, 1, resp.GraphDepth)
	})

	t.Run("category defaults", func(t *testing.T) {
		r, err := NewRetriever(f.vector, f.graph, nil, WithCategoryDefaults(true))
		require.NoError(t, err)
		resp, err := r.Retrieve(ctx, relational.RawQuery, WithAnalysis(relational))
		require.NoError(t, err)
		assert.Equal(t, core.ParamsFor(core.CategoryRelational).NResults, resp.NResults)
		assert.Equal(t, core.ParamsFor(core.CategoryRelational).GraphDepth, resp.GraphDepth)
	})

	t.Run("explicit values win", func(t *testing.T) {
		r, err := NewRetriever(f.vector, f.graph, nil, WithCategoryDefaults(true))
		require.NoError(t, err)
		resp, err := r.Retrieve(ctx, relational.RawQuery,
			WithAnalysis(relational), WithNResults(1), WithGraphDepth(-2), WithStrategy(core.StrategyVector))
		require.NoError(t, err)
		assert.Equal(t, 1, resp.NResults)
		assert.Equal(t, 0, resp.GraphDepth)
		assert.Equal(t, core.StrategyVector, resp.Strategy)
		assert.Len(t, resp.Results, 1)
	})
}

func TestRetrieve_GraphDownDegradesHybrid(t *testing.T) {
	f := newFixture(t)
	down := &fakeGraph{
		RelatedEntitiesFunc: func(context.Context, string, int) ([]core.RelatedEntity, error) {
			return nil, fmt.Errorf("%w: connection refused", core.ErrGraphUnavailable)
		},
	}
	r, err := NewRetriever(f.vector, down, nil)
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How does BERT differ from GPT?")
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.ErrorIs(t, resp.BranchErrors[core.OriginGraph], core.ErrGraphUnavailable)
	assert.NotContains(t, resp.BranchErrors, core.OriginVector)
	require.NotEmpty(t, resp.Results)
	for _, result := range resp.Results {
		assert.Equal(t, core.OriginVector, result.Origin)
	}
	assert.Positive(t, down.CallCount())
}

func TestRetrieve_SingleStrategyPropagatesErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	down := &fakeGraph{
		RelatedEntitiesFunc: func(context.Context, string, int) ([]core.RelatedEntity, error) {
			return nil, errors.New("socket closed")
		},
	}
	r, err := NewRetriever(f.vector, down, nil)
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "BERT", WithStrategy(core.StrategyGraph),
		WithAnalysis(&core.QueryAnalysis{RawQuery: "BERT", KeyEntities: []string{"BERT"}}))
	assert.ErrorIs(t, err, core.ErrGraphUnavailable)

	broken := &fakeVector{
		SearchFunc: func(context.Context, string, int, float64) ([]core.RetrievalResult, error) {
			return nil, fmt.Errorf("%w: model offline", core.ErrEmbeddingUnavailable)
		},
	}
	r, err = NewRetriever(broken, f.graph, nil)
	require.NoError(t, err)
	resp, err := r.Retrieve(ctx, "BERT", WithStrategy(core.StrategyVector))
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	require.NotNil(t, resp)
	assert.ErrorIs(t, resp.BranchErrors[core.OriginVector], core.ErrEmbeddingUnavailable)
}

func TestRetrieve_BothBranchesFail(t *testing.T) {
	ctx := context.Background()
	slowVector := &fakeVector{
		SearchFunc: func(ctx context.Context, _ string, _ int, _ float64) ([]core.RetrievalResult, error) {
			<-ctx.Done()
			return nil, core.Unavailable(core.ErrEmbeddingUnavailable, ctx.Err())
		},
	}
	brokenGraph := &fakeGraph{
		RelatedEntitiesFunc: func(context.Context, string, int) ([]core.RelatedEntity, error) {
			return nil, fmt.Errorf("%w: disk failure", core.ErrGraphUnavailable)
		},
	}

	r, err := NewRetriever(slowVector, brokenGraph, nil, WithOperationTimeout(20*time.Millisecond))
	require.NoError(t, err)

	resp, err := r.Retrieve(ctx, "How does BERT differ from GPT?", WithStrategy(core.StrategyHybrid))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrGraphUnavailable, "a classified failure beats a timeout")
	require.NotNil(t, resp)
	assert.True(t, resp.Degraded)
	assert.ErrorIs(t, resp.BranchErrors[core.OriginVector], core.ErrTimeout)
	assert.Empty(t, resp.Results)
}

func TestRetrieve_GraphTimeoutKeepsPartialResults(t *testing.T) {
	f := newFixture(t)

	// BERT expands at once; GPT stalls until the branch deadline.
	slow := &fakeGraph{
		RelatedEntitiesFunc: func(ctx context.Context, name string, maxDepth int) ([]core.RelatedEntity, error) {
			if name == "GPT" {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return f.graph.RelatedEntities(ctx, name, maxDepth)
		},
	}
	r, err := NewRetriever(f.vector, slow, nil, WithOperationTimeout(20*time.Millisecond))
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How is BERT related to GPT?",
		WithStrategy(core.StrategyGraph),
		WithAnalysis(&core.QueryAnalysis{KeyEntities: []string{"BERT", "GPT"}}),
		WithGraphDepth(0))
	assert.ErrorIs(t, err, core.ErrTimeout)
	require.NotNil(t, resp)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []string{"c2"}, chunkIDs(resp.Results))
}

func TestRetrieve_ClassifierFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	failing := classifierFunc(func(context.Context, string) (*core.QueryAnalysis, error) {
		return nil, errors.New("classifier offline")
	})
	r, err := NewRetriever(f.vector, f.graph, failing)
	require.NoError(t, err)

	resp, err := r.Retrieve(context.Background(), "How does BERT differ from GPT?")
	require.NoError(t, err)
	assert.Equal(t, core.AnalysisSourceHeuristic, resp.Analysis.Source)
	assert.Equal(t, core.StrategyHybrid, resp.Strategy)
}

type classifierFunc func(ctx context.Context, query string) (*core.QueryAnalysis, error)

func (f classifierFunc) Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	return f(ctx, query)
}

type recordingMonitor struct {
	noopMonitor
	events []string
}

func (m *recordingMonitor) Start(string) { m.events = append(m.events, "start") }
func (m *recordingMonitor) AfterClassification(_ *core.QueryAnalysis, s core.Strategy) {
	m.events = append(m.events, "classified:"+s.String())
}
func (m *recordingMonitor) AfterVectorSearch([]core.RetrievalResult, error) {
	m.events = append(m.events, "vector")
}
func (m *recordingMonitor) AfterGraphSearch([]core.RetrievalResult, error) {
	m.events = append(m.events, "graph")
}
func (m *recordingMonitor) AfterFusion([]core.RetrievalResult) { m.events = append(m.events, "fusion") }
func (m *recordingMonitor) Finish(*Response)                  { m.events = append(m.events, "finish") }

func TestRetrieve_Monitor(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, nil)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	_, err = r.Retrieve(context.Background(), "How does BERT differ from GPT?", WithMonitor(monitor))
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "classified:HYBRID", "vector", "graph", "fusion", "finish"}, monitor.events)
}

func TestRetrieveWithContext(t *testing.T) {
	f := newFixture(t)
	r, err := NewRetriever(f.vector, f.graph, nil)
	require.NoError(t, err)
	ctx := context.Background()

	resp, sub, err := r.RetrieveWithContext(ctx, "How does BERT differ from GPT?")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.False(t, resp.Degraded)

	names := make([]string, len(sub.Entities))
	for i, e := range sub.Entities {
		names[i] = e.Name
	}
	slices.Sort(names)
	assert.Equal(t, []string{"BERT", "GPT", "Transformer"}, names)
	assert.Len(t, sub.Relationships, 2)

	failing := &fakeGraph{
		SubgraphFunc: func(context.Context, []string, int) (*core.Subgraph, error) {
			return nil, fmt.Errorf("%w: gone", core.ErrGraphUnavailable)
		},
	}
	r, err = NewRetriever(f.vector, failing, nil)
	require.NoError(t, err)
	resp, sub, err = r.RetrieveWithContext(ctx, "What is BERT?")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.True(t, resp.Degraded)
	assert.ErrorIs(t, resp.BranchErrors[core.OriginGraph], core.ErrGraphUnavailable)
}
