package assemble

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/graphrag/core"
)

const (
	// DefaultMaxEntities caps the entities rendered into the graph section.
	DefaultMaxEntities = 10

	// DefaultMaxRelationships caps the relationships rendered into the graph section.
	DefaultMaxRelationships = 15

	// NoGraphContext is rendered when there is no subgraph to describe.
	NoGraphContext = "No graph context available."
)

// ErrInvalidOption indicates an option was given an invalid value.
var ErrInvalidOption = errors.New("invalid option")

// Document is one retrieval result as presented to synthesis.
type Document struct {
	// Index is the 1-based position used in "[Document i]" labels.
	Index     int
	Source    string
	Content   string
	Relevance float64
	Origin    core.Origin
	GraphPath []string
}

// Context is the assembled evidence for one query.
type Context struct {
	Query         string
	Documents     []Document
	Entities      []core.Entity
	Relationships []core.Relationship

	// Citations lists each source chunk ID once, in document order.
	Citations []string
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithMaxEntities caps the entities kept from the subgraph. Zero keeps none.
func WithMaxEntities(n int) Option {
	return func(a *Assembler) error {
		if n < 0 {
			return fmt.Errorf("%w: max entities cannot be negative, got %d", ErrInvalidOption, n)
		}
		a.maxEntities = n
		return nil
	}
}

// WithMaxRelationships caps the relationships kept from the subgraph. Zero keeps none.
func WithMaxRelationships(n int) Option {
	return func(a *Assembler) error {
		if n < 0 {
			return fmt.Errorf("%w: max relationships cannot be negative, got %d", ErrInvalidOption, n)
		}
		a.maxRelationships = n
		return nil
	}
}

// Assembler builds Contexts.
type Assembler struct {
	maxEntities      int
	maxRelationships int
}

// New creates an Assembler.
func New(opts ...Option) (*Assembler, error) {
	a := &Assembler{
		maxEntities:      DefaultMaxEntities,
		maxRelationships: DefaultMaxRelationships,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

var defaultAssembler = &Assembler{
	maxEntities:      DefaultMaxEntities,
	maxRelationships: DefaultMaxRelationships,
}

// Assemble builds a Context with the default caps.
func Assemble(query string, results []core.RetrievalResult, subgraph *core.Subgraph) *Context {
	return defaultAssembler.Assemble(query, results, subgraph)
}

// Assemble builds a Context from results, which are taken to be ranked
// already. subgraph may be nil.
func (a *Assembler) Assemble(query string, results []core.RetrievalResult, subgraph *core.Subgraph) *Context {
	c := &Context{
		Query:     query,
		Documents: make([]Document, 0, len(results)),
	}

	cited := make(map[string]bool, len(results))
	for i, r := range results {
		c.Documents = append(c.Documents, Document{
			Index:     i + 1,
			Source:    r.SourceChunkID,
			Content:   r.Content,
			Relevance: r.RelevanceScore,
			Origin:    r.Origin,
			GraphPath: r.GraphPath,
		})
		if !cited[r.SourceChunkID] {
			cited[r.SourceChunkID] = true
			c.Citations = append(c.Citations, r.SourceChunkID)
		}
	}

	if !subgraph.IsEmpty() {
		c.Entities = subgraph.Entities[:min(len(subgraph.Entities), a.maxEntities)]
		c.Relationships = subgraph.Relationships[:min(len(subgraph.Relationships), a.maxRelationships)]
	}

	return c
}

// HasGraph reports whether the context carries any graph evidence.
func (c *Context) HasGraph() bool {
	return len(c.Entities) > 0 || len(c.Relationships) > 0
}

// Render returns the documents section followed by the graph section.
func (c *Context) Render() string {
	return c.RenderDocuments() + "\n" + c.RenderGraph()
}

// RenderDocuments writes one labeled block per document.
func (c *Context) RenderDocuments() string {
	blocks := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		blocks[i] = fmt.Sprintf("[Document %d] (Source: %s, Relevance: %.2f)\n%s\n", d.Index, d.Source, d.Relevance, d.Content)
	}
	return strings.Join(blocks, "\n")
}

// RenderGraph lists the related entities and their relationships.
func (c *Context) RenderGraph() string {
	if !c.HasGraph() {
		return NoGraphContext
	}

	var sb strings.Builder
	if len(c.Entities) > 0 {
		sb.WriteString("Related Entities:\n")
		for _, e := range c.Entities {
			fmt.Fprintf(&sb, "  - %s (%s): %s\n", e.Name, e.Type, cmp.Or(e.Description, "N/A"))
		}
	}
	if len(c.Relationships) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Relationships:\n")
		for _, r := range c.Relationships {
			fmt.Fprintf(&sb, "  - %s -[%s]-> %s\n", r.Source, r.Type, r.Target)
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
