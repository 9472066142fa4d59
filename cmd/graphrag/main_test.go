package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/graphrag"
	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const corpusJSONL = `{"id":"c1","content":"The Transformer architecture relies on self-attention","document_id":"paper","position":0}
{"id":"c2","content":"BERT is a bidirectional encoder built on the Transformer","document_id":"paper","position":1}

{"id":"c3","content":"GPT is a generative decoder built on the Transformer","document_id":"paper","position":2,"metadata":{"page":"3"}}
`

func extractVariants(ctx context.Context, text string) (*ai.Extraction, error) {
	ext := &ai.Extraction{}
	for _, name := range []string{"BERT", "GPT"} {
		if strings.HasPrefix(text, name) {
			ext.Entities = append(ext.Entities, ai.ExtractedEntity{Name: name, Type: "TECHNOLOGY"})
			ext.Relationships = append(ext.Relationships, ai.ExtractedRelationship{Source: name, Target: "Transformer", Type: "VARIANT_OF"})
		}
	}
	if len(ext.Entities) == 0 {
		ext.Entities = append(ext.Entities, ai.ExtractedEntity{Name: "Transformer", Type: "TECHNOLOGY"})
	}
	return ext, nil
}

type harness struct {
	t        *testing.T
	db       string
	provider *mock.MockProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:  t,
		db: filepath.Join(t.TempDir(), "db"),
		provider: mock.NewMockProviderWithServices(
			&mock.MockEmbedder{EmbedTextFunc: mock.BagOfWords(256)},
			mock.NewMockQueryClassifier(),
			&mock.MockEntityExtractor{ExtractGraphFunc: extractVariants},
		),
	}
}

// run executes one CLI invocation against the harness database and returns
// what it wrote to stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	app := newApp(graphrag.WithAIProvider(h.provider))
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"graphrag", "--log-level", "error", "--db", h.db}, args...))
	return out.String(), err
}

func (h *harness) index() {
	h.t.Helper()
	input := filepath.Join(h.t.TempDir(), "chunks.jsonl")
	require.NoError(h.t, os.WriteFile(input, []byte(corpusJSONL), 0o644))
	out, err := h.run("index", input)
	require.NoError(h.t, err)
	require.Contains(h.t, out, "Indexed 3 chunks, 3 entities, 2 relationships")
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	h.index()

	t.Run("stats", func(t *testing.T) {
		out, err := h.run("stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Chunks:        3")
		assert.Contains(t, out, "Dimension:     256")
		assert.Contains(t, out, "Relationships: 2")
		assert.Contains(t, out, "TECHNOLOGY:")
	})

	t.Run("query", func(t *testing.T) {
		out, err := h.run("query", "How does BERT differ from GPT?")
		require.NoError(t, err)
		assert.Contains(t, out, "Category: COMPARATIVE")
		assert.Contains(t, out, "Strategy: HYBRID")
		assert.Contains(t, out, "c2")
		assert.Contains(t, out, "c3")
	})

	t.Run("query with strategy and limit", func(t *testing.T) {
		out, err := h.run("query", "--strategy", "vector", "-n", "1", "Transformer self-attention")
		require.NoError(t, err)
		assert.Contains(t, out, "Results: 1")
		assert.Contains(t, out, "1. c1")
	})

	t.Run("query context", func(t *testing.T) {
		out, err := h.run("query", "--context", "How does BERT differ from GPT?")
		require.NoError(t, err)
		assert.Contains(t, out, "[Document 1]")
		assert.Contains(t, out, "Related Entities:")
	})

	t.Run("query rejects unknown strategy", func(t *testing.T) {
		_, err := h.run("query", "--strategy", "bm25", "anything")
		require.Error(t, err)
	})

	t.Run("classify", func(t *testing.T) {
		out, err := h.run("classify", "What is BERT?")
		require.NoError(t, err)
		assert.Contains(t, out, "Category:     FACTUAL")
		assert.Contains(t, out, "BERT")
	})

	t.Run("related", func(t *testing.T) {
		out, err := h.run("related", "--depth", "1", "BERT")
		require.NoError(t, err)
		assert.Contains(t, out, "Transformer (TECHNOLOGY)")
		assert.NotContains(t, out, "GPT")
	})

	t.Run("path", func(t *testing.T) {
		out, err := h.run("path", "BERT", "GPT")
		require.NoError(t, err)
		assert.Contains(t, out, "(2 hops)")
		assert.Contains(t, out, "Transformer")
	})

	t.Run("path not found", func(t *testing.T) {
		out, err := h.run("path", "BERT", "Nonexistent")
		require.NoError(t, err)
		assert.Contains(t, out, "No path found")
	})

	t.Run("subgraph", func(t *testing.T) {
		out, err := h.run("subgraph", "BERT")
		require.NoError(t, err)
		assert.Contains(t, out, "BERT -[VARIANT_OF]-> Transformer")
	})

	t.Run("missing arguments", func(t *testing.T) {
		for _, args := range [][]string{{"query"}, {"classify"}, {"related"}, {"path", "BERT"}, {"subgraph"}, {"index"}} {
			_, err := h.run(args...)
			assert.Error(t, err, "args %v", args)
		}
	})
}

func TestResetCommand(t *testing.T) {
	h := newHarness(t)
	h.index()

	_, err := h.run("reset")
	require.Error(t, err, "reset requires --yes")

	out, err := h.run("reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Database reset")

	out, err = h.run("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:        0")
}

func TestReembedCommand(t *testing.T) {
	h := newHarness(t)
	h.index()

	embedder := h.provider.GetMockEmbedder()
	before := embedder.CallCount()

	_, err := h.run("reembed", "--batch-size", "2")
	require.NoError(t, err)
	assert.Greater(t, embedder.CallCount(), before)
}

func TestReembedCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero batch size", []string{"--batch-size", "0"}, "batch-size must be greater than 0"},
		{"negative report interval", []string{"--report-interval", "-1"}, "report-interval must be greater than 0"},
		{"zero retries", []string{"--max-retries", "0"}, "max-retries must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.run(append([]string{"reembed"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIndexCommand_MalformedInput(t *testing.T) {
	h := newHarness(t)
	input := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{\"id\":\"c1\"}\nnot json\n"), 0o644))

	_, err := h.run("index", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestInitConfigCommand(t *testing.T) {
	h := newHarness(t)
	out := filepath.Join(t.TempDir(), "graphrag.yaml")

	_, err := h.run("init-config", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "database_path: "+h.db)
	assert.Contains(t, string(data), "default_n_results: 5")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Value: "info"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test", "--log-level", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
