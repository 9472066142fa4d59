package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a compact numeric identifier derived from content hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkIDFor derives a stable chunk id from a source document id and the
// chunk's position within that document.
func ChunkIDFor(sourceDocumentID string, position int) string {
	id := IDFromContent(sourceDocumentID + "#" + strconv.Itoa(position))
	return strconv.FormatUint(uint64(id), 16)
}

// Chunk is a bounded span of source-document text with its embedding.
type Chunk struct {
	ID               string
	Content          string
	SourceDocumentID string
	PositionIndex    int
	Embedding        []float32
	Metadata         map[string]string
	Ordinal          uint64    // Insertion sequence, assigned by the store on first write
	InsertedAt       time.Time // When the chunk was first stored
	UpdatedAt        time.Time // When the chunk was last overwritten
}

// Entity is a canonical named concept extracted from text.
type Entity struct {
	Name           string
	Type           EntityType
	Description    string
	SourceChunkIDs []string // Sorted, duplicate-free
}

// Key returns the natural key of the entity.
func (e *Entity) Key() string {
	return NormalizeName(e.Name)
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	Source         string
	Target         string
	Type           string
	Description    string
	SourceChunkIDs []string
}

// Key returns the identity of the relationship: normalized endpoints plus
// the canonical relationship type.
func (r *Relationship) Key() RelationshipKey {
	return RelationshipKey{
		Source: NormalizeName(r.Source),
		Target: NormalizeName(r.Target),
		Type:   NormalizeRelationshipType(r.Type),
	}
}

// RelationshipKey identifies a stored relationship.
type RelationshipKey struct {
	Source string
	Target string
	Type   string
}

// RelatedEntity is one hit of a neighborhood expansion.
type RelatedEntity struct {
	Entity   Entity
	Distance int      // Hop count from the anchor
	Degree   int      // Total (in + out) degree of the entity
	Path     []string // Entity names from the anchor to this entity
}

// Path is a shortest path between two entities.
type Path struct {
	Entities      []string
	Relationships []string
}

// Len returns the number of hops in the path.
func (p *Path) Len() int {
	return len(p.Relationships)
}

// Subgraph is a set of entities together with every relationship between them.
type Subgraph struct {
	Entities      []Entity
	Relationships []Relationship
}

// IsEmpty reports whether the subgraph has no entities.
func (s *Subgraph) IsEmpty() bool {
	return s == nil || len(s.Entities) == 0
}

// QueryAnalysis is the classification of a single query. It is never persisted.
type QueryAnalysis struct {
	RawQuery    string
	Category    Category
	Strategy    Strategy
	KeyEntities []string
	Reasoning   string
	Source      AnalysisSource
}

// RetrievalResult is one piece of ranked evidence.
type RetrievalResult struct {
	Content        string
	SourceChunkID  string
	RelevanceScore float64
	Origin         Origin
	GraphPath      []string
	Metadata       map[string]string
}

// VectorStats summarizes the vector index.
type VectorStats struct {
	TotalChunks int
	Dimension   int
}

// GraphStats summarizes the graph index.
type GraphStats struct {
	TotalEntities      int
	TotalRelationships int
	EntityTypes        map[EntityType]int
}

// Checkpoint records how far a batch job has progressed.
type Checkpoint struct {
	ProcessorType string
	LastOrdinal   uint64
	UpdatedAt     time.Time
}
