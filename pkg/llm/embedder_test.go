package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := NewEmbedderWithConfig(EmbedderConfig{
		Provider: "ollama",
		Model:    "nomic-embed-text:latest",
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedderWithConfig(EmbedderConfig{Provider: "watson"})
	assert.Error(t, err)
}

type stubEmbeddingClient struct {
	vectors [][]float32
	err     error
	gotText []string
}

func (s *stubEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	s.gotText = texts
	return s.vectors, s.err
}

func TestEmbedQuery(t *testing.T) {
	stub := &stubEmbeddingClient{vectors: [][]float32{{0.1, 0.2}}}
	emb := &Embedder{client: stub}

	vec, err := emb.EmbedQuery(context.Background(), "what is the video about")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, []string{"what is the video about"}, stub.gotText)
}

func TestEmbedQueryNoVector(t *testing.T) {
	emb := &Embedder{client: &stubEmbeddingClient{}}

	_, err := emb.EmbedQuery(context.Background(), "query")
	assert.Error(t, err)
}

func TestEmbedQueryPropagatesError(t *testing.T) {
	emb := &Embedder{client: &stubEmbeddingClient{err: errors.New("upstream down")}}

	_, err := emb.EmbedQuery(context.Background(), "query")
	assert.Error(t, err)
}
