package retrieval

import (
	"github.com/poiesic/graphrag/core"
)

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
//
// RelatedEntities is called from the graph branch, which may run concurrently
// with the caller; all other hooks are called from the goroutine that invoked
// Retrieve.
type Monitor interface {
	Start(query string)
	AfterClassification(analysis *core.QueryAnalysis, strategy core.Strategy)
	RelatedEntities(anchor string, related []core.RelatedEntity)
	AfterVectorSearch(results []core.RetrievalResult, err error)
	AfterGraphSearch(results []core.RetrievalResult, err error)
	AfterFusion(results []core.RetrievalResult)
	Finish(response *Response)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                             {}
func (n *noopMonitor) AfterClassification(_ *core.QueryAnalysis, _ core.Strategy) {}
func (n *noopMonitor) RelatedEntities(_ string, _ []core.RelatedEntity)           {}
func (n *noopMonitor) AfterVectorSearch(_ []core.RetrievalResult, _ error)        {}
func (n *noopMonitor) AfterGraphSearch(_ []core.RetrievalResult, _ error)         {}
func (n *noopMonitor) AfterFusion(_ []core.RetrievalResult)                       {}
func (n *noopMonitor) Finish(_ *Response)                                         {}
