package retrieval

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/graphrag/classify"
	"github.com/poiesic/graphrag/core"
	"golang.org/x/sync/errgroup"
)

// VectorIndex is the semantic search capability the retriever needs.
type VectorIndex interface {
	Search(ctx context.Context, query string, k int, minRelevance float64) ([]core.RetrievalResult, error)
	Chunks(ctx context.Context, ids ...string) ([]*core.Chunk, error)
}

// GraphIndex is the graph traversal capability the retriever needs.
type GraphIndex interface {
	RelatedEntities(ctx context.Context, name string, maxDepth int) ([]core.RelatedEntity, error)
	Subgraph(ctx context.Context, anchors []string, maxDepth int) (*core.Subgraph, error)
}

// Response is the outcome of a retrieval.
type Response struct {
	// Results are ranked best first and hold at most NResults entries.
	Results []core.RetrievalResult

	// Analysis is the classification the retrieval was planned from.
	Analysis *core.QueryAnalysis

	// Strategy is the strategy actually executed.
	Strategy core.Strategy

	NResults   int
	GraphDepth int

	// Degraded is set when a branch failed or was cut short and Results
	// contain only what the rest of the pipeline produced.
	Degraded bool

	// BranchErrors holds the error of each failed branch.
	BranchErrors map[core.Origin]error
}

// Retriever orchestrates classification, the retrieval branches, fusion and ranking.
type Retriever struct {
	vector     VectorIndex
	graph      GraphIndex
	classifier classify.Classifier
	heuristic  *classify.Heuristic
	logger     *slog.Logger

	defaultNResults     int
	defaultGraphDepth   int
	operationTimeout    time.Duration
	corroborationBonus  float64
	degreeDecay         float64
	candidateMultiplier int
	categoryDefaults    bool
}

// NewRetriever creates a retriever. A nil classifier classifies with the
// keyword heuristic.
func NewRetriever(vector VectorIndex, graph GraphIndex, classifier classify.Classifier, opts ...Option) (*Retriever, error) {
	if vector == nil {
		return nil, ErrVectorIndexRequired
	}
	if graph == nil {
		return nil, ErrGraphIndexRequired
	}

	heuristic := classify.NewHeuristic()
	if classifier == nil {
		classifier = heuristic
	}

	r := &Retriever{
		vector:              vector,
		graph:               graph,
		classifier:          classifier,
		heuristic:           heuristic,
		logger:              slog.Default().With("component", "retriever"),
		defaultNResults:     DefaultNResults,
		defaultGraphDepth:   DefaultGraphDepth,
		operationTimeout:    DefaultOperationTimeout,
		corroborationBonus:  DefaultCorroborationBonus,
		degreeDecay:         DefaultDegreeDecay,
		candidateMultiplier: DefaultCandidateMultiplier,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve finds the chunks most relevant to query.
//
// The returned Response is non-nil whenever the options are valid, even
// alongside an error, so that partial results of a failed retrieval are
// still available to the caller.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) (*Response, error) {
	req := &request{monitor: &noopMonitor{}}
	for _, opt := range opts {
		opt(req)
	}
	if req.strategy != core.StrategyUnspecified && !req.strategy.Valid() {
		return nil, core.ErrInvalidStrategy
	}
	if req.nSet && req.nResults < 1 {
		return nil, core.ErrInvalidK
	}

	monitor := req.monitor
	monitor.Start(query)

	analysis := r.analyze(ctx, query, req.analysis)
	resp := &Response{
		Analysis: analysis,
		Strategy: cmp.Or(req.strategy, analysis.Strategy, core.StrategyFor(analysis.Category)),
	}
	resp.NResults, resp.GraphDepth = r.limits(req, analysis.Category)
	monitor.AfterClassification(analysis, resp.Strategy)

	var err error
	switch resp.Strategy {
	case core.StrategyVector:
		bctx, cancel := r.branchContext(ctx)
		resp.Results, err = r.searchVector(bctx, query, resp.NResults, req.minRelevance)
		cancel()
		monitor.AfterVectorSearch(resp.Results, err)
		if err != nil {
			resp.BranchErrors = map[core.Origin]error{core.OriginVector: err}
		}

	case core.StrategyGraph:
		bctx, cancel := r.branchContext(ctx)
		resp.Results, err = r.searchGraph(bctx, analysis, resp.NResults, resp.GraphDepth, monitor)
		cancel()
		monitor.AfterGraphSearch(resp.Results, err)
		if err != nil {
			resp.BranchErrors = map[core.Origin]error{core.OriginGraph: err}
			resp.Degraded = len(resp.Results) > 0
		}

	case core.StrategyHybrid:
		err = r.hybrid(ctx, query, analysis, req, resp)

	default:
		return nil, core.ErrInvalidStrategy
	}

	// Vector results arrive ordered with ties broken by insertion order.
	if resp.Strategy != core.StrategyVector {
		Rank(resp.Results)
	}
	if len(resp.Results) > resp.NResults {
		resp.Results = resp.Results[:resp.NResults]
	}

	monitor.Finish(resp)
	if err != nil {
		r.logger.Warn("retrieval failed", "strategy", resp.Strategy, "partial", len(resp.Results), "err", err)
		return resp, err
	}

	r.logger.Debug("retrieval complete",
		"strategy", resp.Strategy,
		"category", analysis.Category,
		"results", len(resp.Results),
		"degraded", resp.Degraded)
	return resp, nil
}

// RetrieveWithContext retrieves like Retrieve and also returns the subgraph
// around the query's key entities. A failed subgraph lookup only marks the
// response degraded.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, opts ...RetrieveOption) (*Response, *core.Subgraph, error) {
	resp, err := r.Retrieve(ctx, query, opts...)
	if resp == nil {
		return nil, nil, err
	}

	entities := keyEntities(resp.Analysis)
	sub, subErr := r.graph.Subgraph(ctx, entities, resp.GraphDepth)
	if subErr != nil {
		r.logger.Warn("subgraph unavailable", "entities", len(entities), "err", subErr)
		resp.Degraded = true
		if resp.BranchErrors == nil {
			resp.BranchErrors = make(map[core.Origin]error)
		}
		if _, ok := resp.BranchErrors[core.OriginGraph]; !ok {
			resp.BranchErrors[core.OriginGraph] = subErr
		}
		return resp, nil, err
	}
	return resp, sub, err
}

// analyze never fails: classifier errors fall back to the heuristic.
func (r *Retriever) analyze(ctx context.Context, query string, given *core.QueryAnalysis) *core.QueryAnalysis {
	if given != nil {
		return given
	}
	analysis, err := r.classifier.Analyze(ctx, query)
	if err != nil || analysis == nil {
		r.logger.Warn("classification failed, using heuristics", "err", err)
		analysis, _ = r.heuristic.Analyze(ctx, query)
	}
	return analysis
}

func (r *Retriever) limits(req *request, category core.Category) (int, int) {
	n, depth := r.defaultNResults, r.defaultGraphDepth
	if r.categoryDefaults {
		params := core.ParamsFor(category)
		n, depth = params.NResults, params.GraphDepth
	}
	if req.nSet {
		n = req.nResults
	}
	if req.depthSet {
		depth = req.graphDepth
	}
	return n, depth
}

// hybrid runs both branches concurrently. Each branch records its own error
// and never cancels the other.
func (r *Retriever) hybrid(ctx context.Context, query string, analysis *core.QueryAnalysis, req *request, resp *Response) error {
	candidates := resp.NResults * r.candidateMultiplier

	var (
		vectorResults, graphResults []core.RetrievalResult
		vectorErr, graphErr         error
		g                           errgroup.Group
	)

	g.Go(func() error {
		bctx, cancel := r.branchContext(ctx)
		defer cancel()
		vectorResults, vectorErr = r.searchVector(bctx, query, candidates, req.minRelevance)
		return nil
	})
	g.Go(func() error {
		bctx, cancel := r.branchContext(ctx)
		defer cancel()
		graphResults, graphErr = r.searchGraph(bctx, analysis, candidates, resp.GraphDepth, req.monitor)
		return nil
	})
	_ = g.Wait()

	req.monitor.AfterVectorSearch(vectorResults, vectorErr)
	req.monitor.AfterGraphSearch(graphResults, graphErr)

	resp.Results = Fuse(vectorResults, graphResults, r.corroborationBonus)
	req.monitor.AfterFusion(resp.Results)

	if vectorErr == nil && graphErr == nil {
		return nil
	}

	resp.Degraded = true
	resp.BranchErrors = make(map[core.Origin]error, 2)
	if vectorErr != nil {
		resp.BranchErrors[core.OriginVector] = vectorErr
	}
	if graphErr != nil {
		resp.BranchErrors[core.OriginGraph] = graphErr
	}

	if vectorErr != nil && graphErr != nil {
		return mostSpecific(vectorErr, graphErr)
	}

	r.logger.Warn("hybrid retrieval degraded", "vector_err", vectorErr, "graph_err", graphErr)
	return nil
}

func (r *Retriever) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.operationTimeout > 0 {
		return context.WithTimeout(ctx, r.operationTimeout)
	}
	return context.WithCancel(ctx)
}

// mostSpecific picks the error to surface when every branch failed: a
// classified unavailability beats a timeout, which beats anything else.
// Earlier arguments win ties.
func mostSpecific(errs ...error) error {
	best, bestRank := errs[0], specificity(errs[0])
	for _, err := range errs[1:] {
		if rank := specificity(err); rank < bestRank {
			best, bestRank = err, rank
		}
	}
	return best
}

func specificity(err error) int {
	switch {
	case errors.Is(err, core.ErrEmbeddingUnavailable),
		errors.Is(err, core.ErrGraphUnavailable),
		errors.Is(err, core.ErrVectorStoreUnavailable):
		return 0
	case errors.Is(err, core.ErrTimeout):
		return 1
	default:
		return 2
	}
}
