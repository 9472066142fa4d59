package openai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/graphrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel answers GenerateContent calls from a fixed script.
type scriptedModel struct {
	responses []string
	err       error
	calls     int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	text := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt)
}

func newTestClassifier(model llms.Model) *QueryClassifier {
	return &QueryClassifier{client: model, maxRetries: 3, logger: slog.Default()}
}

func newTestExtractor(model llms.Model) *EntityExtractor {
	return &EntityExtractor{client: model, maxRetries: 2, logger: slog.Default()}
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
		want      *ai.QueryClassification
		wantCalls int
	}{
		{
			name:      "plain json",
			responses: []string{`{"category":"COMPARATIVE","key_entities":["GPT","BERT"],"reasoning":"Contrasts two models."}`},
			want:      &ai.QueryClassification{Category: "COMPARATIVE", KeyEntities: []string{"GPT", "BERT"}, Reasoning: "Contrasts two models."},
			wantCalls: 1,
		},
		{
			name:      "fenced with lower case category",
			responses: []string{"```json\n{\"category\":\"trend analysis\",\"key_entities\":[],\"reasoning\":\"\"}\n```"},
			want:      &ai.QueryClassification{Category: "TREND_ANALYSIS", KeyEntities: []string{}},
			wantCalls: 1,
		},
		{
			name:      "repaired keys",
			responses: []string{`{category":"FACTUAL", key_entities":["BERT",],"reasoning":"x",}`},
			want:      &ai.QueryClassification{Category: "FACTUAL", KeyEntities: []string{"BERT"}, Reasoning: "x"},
			wantCalls: 1,
		},
		{
			name: "retries until valid",
			responses: []string{
				`not json at all`,
				`{"category":"GOSSIP","key_entities":[],"reasoning":""}`,
				`{"category":"RELATIONAL","key_entities":["Vaswani"],"reasoning":"connections"}`,
			},
			want:      &ai.QueryClassification{Category: "RELATIONAL", KeyEntities: []string{"Vaswani"}, Reasoning: "connections"},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{responses: tt.responses}
			got, err := newTestClassifier(model).ClassifyQuery(context.Background(), "query")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, model.calls)
		})
	}
}

func TestClassifyQuery_Failures(t *testing.T) {
	t.Run("malformed after retries", func(t *testing.T) {
		model := &scriptedModel{responses: []string{"{}"}}
		_, err := newTestClassifier(model).ClassifyQuery(context.Background(), "query")
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Equal(t, 3, model.calls)
	})

	t.Run("transport error is not retried", func(t *testing.T) {
		cause := errors.New("connection refused")
		model := &scriptedModel{err: cause}
		_, err := newTestClassifier(model).ClassifyQuery(context.Background(), "query")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, model.calls)
	})

	t.Run("no choices", func(t *testing.T) {
		_, err := newTestClassifier(&scriptedModel{}).ClassifyQuery(context.Background(), "query")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestExtractGraph(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"I cannot help with that.",
		"ENTITIES:\n- Name: BERT, Type: TECHNOLOGY, Description: Encoder\n\nRELATIONSHIPS:\n- (BERT) -[VARIANT_OF]-> (Transformer)",
	}}

	got, err := newTestExtractor(model).ExtractGraph(context.Background(), "BERT is a Transformer variant.")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)
	assert.Equal(t, []ai.ExtractedEntity{{Name: "BERT", Type: "TECHNOLOGY", Description: "Encoder"}}, got.Entities)
	assert.Equal(t, []ai.ExtractedRelationship{{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF"}}, got.Relationships)

	_, err = newTestExtractor(&scriptedModel{responses: []string{"nothing useful"}}).ExtractGraph(context.Background(), "text")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseExtraction(t *testing.T) {
	response := `ENTITIES:
- Name: Transformer Architecture, Type: CONCEPT, Description: A neural network architecture
  for sequence processing
- Name: Vaswani et al., Type: person, Description: Researchers who introduced the transformer
- Name: transformer architecture, Type: CONCEPT, Description: duplicate
* Name: Google, Type: ORGANIZATION, Description: Technology company
- this line is noise

relationships:
- (Vaswani et al.) -[AUTHORED]-> (Attention is All You Need)
- (Google) -[DEVELOPED]->(Transformer Architecture)
- () -[BROKEN]-> (Google)
`

	got := ParseExtraction(response)

	assert.Equal(t, []ai.ExtractedEntity{
		{Name: "Transformer Architecture", Type: "CONCEPT", Description: "A neural network architecture for sequence processing"},
		{Name: "Vaswani et al.", Type: "PERSON", Description: "Researchers who introduced the transformer"},
		{Name: "Google", Type: "ORGANIZATION", Description: "Technology company"},
	}, got.Entities)

	assert.Equal(t, []ai.ExtractedRelationship{
		{Source: "Vaswani et al.", Target: "Attention is All You Need", Type: "AUTHORED"},
		{Source: "Google", Target: "Transformer Architecture", Type: "DEVELOPED"},
	}, got.Relationships)
}

func TestParseExtraction_Empty(t *testing.T) {
	assert.True(t, ParseExtraction("ENTITIES:\n\nRELATIONSHIPS:\n").IsEmpty())
	assert.True(t, ParseExtraction("").IsEmpty())
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`{ type":"x"}`, `{ "type":"x"}`},
		{`{"a":"b", key_entities":[]}`, `{"a":"b", "key_entities":[]}`},
		{`{"a":[1,2,],}`, `{"a":[1,2]}`},
		{`{"a":"keep, } this"}`, `{"a":"keep, } this"}`},
		{`{"a":"say \"hi\", ]"}`, `{"a":"say \"hi\", ]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1} "))
}

func TestProviderRequiresValidConfig(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingModel(""))
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}

func TestCheckVectors(t *testing.T) {
	assert.NoError(t, checkVectors([][]float32{{1, 0}, {0, 1}}, 2))
	assert.ErrorIs(t, checkVectors([][]float32{{1, 0}}, 2), ErrEmptyResponse)
	assert.ErrorIs(t, checkVectors([][]float32{{1, 0}, {}}, 2), ErrEmptyResponse)
	assert.ErrorIs(t, checkVectors([][]float32{{1, 0}, {1, 0, 0}}, 2), ErrMalformedResponse)
}
