package assemble

import (
	"fmt"
	"testing"

	"github.com/poiesic/graphrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []core.RetrievalResult {
	return []core.RetrievalResult{
		{SourceChunkID: "c2", Content: "BERT is a bidirectional encoder.", RelevanceScore: 0.987, Origin: core.OriginBoth},
		{SourceChunkID: "c3", Content: "GPT is a generative decoder.", RelevanceScore: 0.5, Origin: core.OriginVector},
		{SourceChunkID: "c2", Content: "BERT is a bidirectional encoder.", RelevanceScore: 0.4, Origin: core.OriginGraph},
	}
}

func TestAssemble_Documents(t *testing.T) {
	c := Assemble("How does BERT differ from GPT?", sampleResults(), nil)

	require.Len(t, c.Documents, 3)
	assert.Equal(t, 1, c.Documents[0].Index)
	assert.Equal(t, []string{"c2", "c3"}, c.Citations)
	assert.False(t, c.HasGraph())

	want := "[Document 1] (Source: c2, Relevance: 0.99)\nBERT is a bidirectional encoder.\n" +
		"\n[Document 2] (Source: c3, Relevance: 0.50)\nGPT is a generative decoder.\n" +
		"\n[Document 3] (Source: c2, Relevance: 0.40)\nBERT is a bidirectional encoder.\n"
	assert.Equal(t, want, c.RenderDocuments())
	assert.Equal(t, NoGraphContext, c.RenderGraph())
}

func TestAssemble_Graph(t *testing.T) {
	sub := &core.Subgraph{
		Entities: []core.Entity{
			{Name: "BERT", Type: core.EntityTypeTechnology, Description: "Bidirectional encoder"},
			{Name: "Transformer", Type: core.EntityTypeTechnology},
		},
		Relationships: []core.Relationship{
			{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF"},
		},
	}

	c := Assemble("What is BERT?", sampleResults()[:1], sub)
	want := "Related Entities:\n" +
		"  - BERT (TECHNOLOGY): Bidirectional encoder\n" +
		"  - Transformer (TECHNOLOGY): N/A\n" +
		"\nRelationships:\n" +
		"  - BERT -[VARIANT_OF]-> Transformer"
	assert.Equal(t, want, c.RenderGraph())
	assert.Contains(t, c.Render(), "[Document 1] (Source: c2, Relevance: 0.99)")
	assert.Contains(t, c.Render(), "BERT -[VARIANT_OF]-> Transformer")
}

func TestAssemble_Caps(t *testing.T) {
	sub := &core.Subgraph{}
	for i := range 30 {
		name := fmt.Sprintf("E%02d", i)
		sub.Entities = append(sub.Entities, core.Entity{Name: name})
		sub.Relationships = append(sub.Relationships, core.Relationship{Source: name, Target: "Hub", Type: "LINKS"})
	}

	c := Assemble("q", nil, sub)
	assert.Len(t, c.Entities, DefaultMaxEntities)
	assert.Len(t, c.Relationships, DefaultMaxRelationships)

	a, err := New(WithMaxEntities(2), WithMaxRelationships(0))
	require.NoError(t, err)
	c = a.Assemble("q", nil, sub)
	assert.Len(t, c.Entities, 2)
	assert.Empty(t, c.Relationships)
	assert.NotContains(t, c.RenderGraph(), "Relationships:")

	_, err = New(WithMaxEntities(-1))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = New(WithMaxRelationships(-1))
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestAssemble_EmptySubgraph(t *testing.T) {
	c := Assemble("q", nil, &core.Subgraph{})
	assert.Empty(t, c.Documents)
	assert.Empty(t, c.Citations)
	assert.Equal(t, "\n"+NoGraphContext, c.Render())
}
