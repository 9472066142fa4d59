package vector

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// ANN graph parameters, the coder/hnsw recommendations.
const (
	graphM        = 16
	graphEfSearch = 20
	graphMl       = 0.25
)

// Rebuild the ANN graph once orphaned nodes outnumber live ones by this floor.
const minOrphansBeforeCompact = 1024

// entry is the in-memory view of one indexed chunk.
type entry struct {
	ordinal uint64
	key     uint64    // current ANN node key
	vec     []float32 // unit length
}

type hit struct {
	id        string
	ordinal   uint64
	relevance float64
}

// Index is a cosine-similarity index over chunk embeddings.
//
// Chunks are persisted through a storage.ChunkRepository and mirrored in
// memory. Small indexes are searched exhaustively; larger ones use an HNSW
// graph whose candidates are rescored exactly. Overwritten chunks leave
// orphaned graph nodes behind, which are filtered at search time and
// dropped when the graph is rebuilt.
type Index struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
	logger   *slog.Logger

	batchSize      int
	exactLimit     int
	overfetch      int
	configuredDim  int
	queryCacheSize int
	queryCache     *lru.Cache[core.ID, []float32]

	// writeMu serializes Add and Reset so persistence and indexing stay in step.
	writeMu sync.Mutex

	mu        sync.RWMutex
	dimension int
	graph     *hnsw.Graph[uint64]
	entries   map[string]*entry
	keys      map[uint64]string
	nextKey   uint64
	orphans   int
}

// NewIndex creates an Index and loads every stored chunk into memory.
func NewIndex(ctx context.Context, repo storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Index, error) {
	if repo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	idx := &Index{
		repo:           repo,
		embedder:       embedder,
		logger:         slog.Default().With("component", "vector"),
		batchSize:      DefaultBatchSize,
		exactLimit:     DefaultExactSearchLimit,
		overfetch:      DefaultOverfetch,
		queryCacheSize: DefaultQueryCacheSize,
		graph:          newGraph(),
		entries:        make(map[string]*entry),
		keys:           make(map[uint64]string),
	}

	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	if idx.queryCacheSize > 0 {
		cache, err := lru.New[core.ID, []float32](idx.queryCacheSize)
		if err != nil {
			return nil, err
		}
		idx.queryCache = cache
	}

	if err := idx.load(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = graphM
	graph.EfSearch = graphEfSearch
	graph.Ml = graphMl
	return graph
}

func (idx *Index) load(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	skipped := 0
	err := idx.repo.ScanChunks(ctx, func(chunk *core.Chunk) error {
		if idx.dimension == 0 {
			idx.dimension = len(chunk.Embedding)
		}
		if err := core.ValidateEmbedding(chunk.Embedding, idx.dimension); err != nil {
			skipped++
			return nil
		}
		idx.insertLocked(chunk)
		return nil
	})
	if err != nil {
		return core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}

	if skipped > 0 {
		idx.logger.Warn("skipped stored chunks with unusable embeddings", "count", skipped)
	}
	idx.logger.Debug("loaded vector index", "chunks", len(idx.entries), "dimension", idx.dimension)
	return nil
}

// Add indexes chunks, embedding those without an embedding. Re-adding an
// existing ID overwrites its content and embedding and keeps its Ordinal.
// Returns the number of chunks written before any error.
func (idx *Index) Add(ctx context.Context, chunks ...*core.Chunk) (int, error) {
	batch := make([]*core.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return 0, err
		}
		c := *chunk
		batch = append(batch, &c)
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	added := 0
	for start := 0; start < len(batch); start += idx.batchSize {
		end := min(start+idx.batchSize, len(batch))
		n, err := idx.addBatch(ctx, batch[start:end])
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

func (idx *Index) addBatch(ctx context.Context, batch []*core.Chunk) (int, error) {
	if err := idx.embedMissing(ctx, batch); err != nil {
		return 0, err
	}

	idx.mu.RLock()
	dim := idx.dimension
	idx.mu.RUnlock()

	for _, chunk := range batch {
		if dim == 0 {
			dim = len(chunk.Embedding)
		}
		if err := core.ValidateEmbedding(chunk.Embedding, dim); err != nil {
			return 0, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		if norm(chunk.Embedding) == 0 {
			return 0, fmt.Errorf("%w: chunk %s has a zero embedding", core.ErrInvalidChunk, chunk.ID)
		}
	}

	stored, err := idx.repo.PutChunks(ctx, batch...)
	if err != nil {
		return 0, core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}

	idx.mu.Lock()
	if idx.dimension == 0 {
		idx.dimension = dim
	}
	for _, chunk := range stored {
		idx.insertLocked(chunk)
	}
	idx.compactLocked()
	idx.mu.Unlock()

	idx.logger.Debug("indexed chunk batch", "count", len(stored))
	return len(stored), nil
}

func (idx *Index) embedMissing(ctx context.Context, batch []*core.Chunk) error {
	var missing []int
	var texts []string
	for i, chunk := range batch {
		if len(chunk.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, chunk.Content)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vecs, err := idx.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return core.Unavailable(core.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts",
			core.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	for j, i := range missing {
		batch[i].Embedding = vecs[j]
	}
	return nil
}

// insertLocked adds or replaces a chunk in the in-memory index.
// Caller must hold mu for writing.
func (idx *Index) insertLocked(chunk *core.Chunk) {
	vec := normalized(chunk.Embedding)

	// coder/hnsw misbehaves when deleting nodes, so replaced nodes are orphaned instead.
	if old, ok := idx.entries[chunk.ID]; ok {
		delete(idx.keys, old.key)
		idx.orphans++
	}

	key := idx.nextKey
	idx.nextKey++
	idx.graph.Add(hnsw.MakeNode(key, vec))

	idx.entries[chunk.ID] = &entry{ordinal: chunk.Ordinal, key: key, vec: vec}
	idx.keys[key] = chunk.ID
}

// compactLocked rebuilds the ANN graph when orphans dominate it.
func (idx *Index) compactLocked() {
	if idx.orphans < minOrphansBeforeCompact || idx.orphans < len(idx.entries) {
		return
	}

	ids := make([]string, 0, len(idx.entries))
	for id := range idx.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(idx.entries[a].ordinal, idx.entries[b].ordinal)
	})

	idx.graph = newGraph()
	idx.keys = make(map[uint64]string, len(ids))
	idx.nextKey = 0
	for _, id := range ids {
		e := idx.entries[id]
		e.key = idx.nextKey
		idx.nextKey++
		idx.graph.Add(hnsw.MakeNode(e.key, e.vec))
		idx.keys[e.key] = id
	}
	idx.logger.Debug("compacted ANN graph", "orphans", idx.orphans, "live", len(ids))
	idx.orphans = 0
}

// Search embeds query and returns the k most similar chunks with relevance
// of at least minRelevance, ordered by relevance then insertion order.
func (idx *Index) Search(ctx context.Context, query string, k int, minRelevance float64) ([]core.RetrievalResult, error) {
	if k <= 0 {
		return nil, core.ErrInvalidK
	}
	if idx.Len() == 0 {
		return []core.RetrievalResult{}, nil
	}

	vec, err := idx.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return idx.SearchByVector(ctx, vec, k, minRelevance)
}

func (idx *Index) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := core.IDFromContent(query)
	if idx.queryCache != nil {
		if vec, ok := idx.queryCache.Get(key); ok {
			return vec, nil
		}
	}

	vec, err := idx.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, core.Unavailable(core.ErrEmbeddingUnavailable, err)
	}

	if idx.queryCache != nil {
		idx.queryCache.Add(key, vec)
	}
	return vec, nil
}

// SearchByVector is Search with a precomputed query embedding.
func (idx *Index) SearchByVector(ctx context.Context, vec []float32, k int, minRelevance float64) ([]core.RetrievalResult, error) {
	if k <= 0 {
		return nil, core.ErrInvalidK
	}
	if err := ctx.Err(); err != nil {
		return nil, core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}

	query := normalized(vec)

	idx.mu.RLock()
	if len(idx.entries) == 0 {
		idx.mu.RUnlock()
		return []core.RetrievalResult{}, nil
	}
	if err := core.ValidateEmbedding(query, idx.dimension); err != nil {
		idx.mu.RUnlock()
		return nil, err
	}
	var hits []hit
	if len(idx.entries) <= idx.exactLimit {
		hits = idx.exactScanLocked(query)
	} else {
		hits = idx.graphScanLocked(query, k)
	}
	idx.mu.RUnlock()

	slices.SortFunc(hits, compareHits)
	hits = slices.DeleteFunc(hits, func(h hit) bool { return h.relevance < minRelevance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return idx.resolve(ctx, hits)
}

func (idx *Index) exactScanLocked(query []float32) []hit {
	hits := make([]hit, 0, len(idx.entries))
	for id, e := range idx.entries {
		hits = append(hits, hit{id: id, ordinal: e.ordinal, relevance: relevance(query, e.vec)})
	}
	return hits
}

func (idx *Index) graphScanLocked(query []float32, k int) []hit {
	want := min(k*idx.overfetch+idx.orphans, idx.graph.Len())
	nodes := idx.graph.Search(query, want)

	hits := make([]hit, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keys[node.Key]
		if !ok {
			continue
		}
		e := idx.entries[id]
		hits = append(hits, hit{id: id, ordinal: e.ordinal, relevance: relevance(query, e.vec)})
	}
	return hits
}

func compareHits(a, b hit) int {
	if c := cmp.Compare(b.relevance, a.relevance); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ordinal, b.ordinal); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// resolve loads chunk content for ranked hits, preserving their order.
func (idx *Index) resolve(ctx context.Context, hits []hit) ([]core.RetrievalResult, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	chunks, err := idx.Chunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	results := make([]core.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		chunk, ok := byID[h.id]
		// Removed by a concurrent Reset.
		if !ok {
			continue
		}
		results = append(results, core.RetrievalResult{
			Content:        chunk.Content,
			SourceChunkID:  chunk.ID,
			RelevanceScore: h.relevance,
			Origin:         core.OriginVector,
			Metadata:       chunk.Metadata,
		})
	}
	return results, nil
}

// Chunks returns stored chunks by ID, skipping unknown IDs.
func (idx *Index) Chunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	chunks, err := idx.repo.GetChunks(ctx, ids...)
	if err != nil {
		return nil, core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}
	return chunks, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Stats reports the index size and dimension.
func (idx *Index) Stats(ctx context.Context) (core.VectorStats, error) {
	if err := ctx.Err(); err != nil {
		return core.VectorStats{}, core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return core.VectorStats{
		TotalChunks: len(idx.entries),
		Dimension:   idx.dimension,
	}, nil
}

// Reset removes every chunk from the store and the in-memory index.
func (idx *Index) Reset(ctx context.Context) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	if err := idx.repo.Reset(ctx); err != nil {
		return core.Unavailable(core.ErrVectorStoreUnavailable, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.graph = newGraph()
	idx.entries = make(map[string]*entry)
	idx.keys = make(map[uint64]string)
	idx.nextKey = 0
	idx.orphans = 0
	idx.dimension = idx.configuredDim
	idx.logger.Info("vector index reset")
	return nil
}

// relevance maps cosine distance in [0,2] onto [0,1].
func relevance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	distance := 1 - dot
	return math.Max(0, math.Min(1, 1-distance/2))
}

func norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	n := norm(v)
	if n == 0 {
		return out
	}
	inv := float32(1 / n)
	for i := range out {
		out[i] *= inv
	}
	return out
}
