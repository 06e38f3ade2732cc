package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/tuber/internal/models"
	"github.com/xhad/tuber/pkg/ingest"
	"github.com/xhad/tuber/pkg/processor"
)

type fakeLoader struct {
	doc models.Document
	err error
}

func (f *fakeLoader) Load(ctx context.Context, url string) (models.Document, error) {
	return f.doc, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 1}, nil
}

type fakeIndex struct {
	added [][]models.Chunk
	err   error
}

func (f *fakeIndex) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, chunks)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, embedding []float32, limit int, documentIDs []string) ([]models.ScoredChunk, error) {
	return nil, nil
}

func newPipeline(l *fakeLoader, idx *fakeIndex) *ingest.Pipeline {
	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
	})
	return ingest.NewPipeline(l, &splitter, &fakeEmbedder{}, idx)
}

func TestIngest(t *testing.T) {
	l := &fakeLoader{doc: models.Document{
		URL:     "https://youtu.be/dQw4w9WgXcQ",
		Title:   "Test Video",
		Content: "This transcript talks about something for long enough to produce a chunk or two of content.",
	}}
	idx := &fakeIndex{}

	err := newPipeline(l, idx).Ingest(context.Background(), l.doc.URL, "d1")
	require.NoError(t, err)

	// One logical batch, every chunk tagged with the document id
	require.Len(t, idx.added, 1)
	require.NotEmpty(t, idx.added[0])
	for _, chunk := range idx.added[0] {
		assert.Equal(t, "d1", chunk.DocumentID)
		assert.NotEmpty(t, chunk.Embedding)
	}

	// The title prefix lands in the first chunk
	assert.Contains(t, idx.added[0][0].Content, "Video title: Test Video")
}

func TestIngestEmptyTranscript(t *testing.T) {
	l := &fakeLoader{doc: models.Document{Title: "Silent", Content: "  "}}
	idx := &fakeIndex{}

	err := newPipeline(l, idx).Ingest(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "d1")
	assert.ErrorIs(t, err, ingest.ErrEmptySource)
	assert.Empty(t, idx.added)
}

func TestIngestLoaderFailure(t *testing.T) {
	l := &fakeLoader{err: errors.New("video unavailable")}
	idx := &fakeIndex{}

	err := newPipeline(l, idx).Ingest(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "d1")
	assert.Error(t, err)
	assert.Empty(t, idx.added)
}

func TestIngestRequiresDocumentID(t *testing.T) {
	l := &fakeLoader{doc: models.Document{Content: "some text"}}
	idx := &fakeIndex{}

	err := newPipeline(l, idx).Ingest(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "")
	assert.Error(t, err)
	assert.Empty(t, idx.added)
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	l := &fakeLoader{doc: models.Document{Title: "Test", Content: "plenty of transcript text here"}}
	idx := &fakeIndex{}

	splitter := processor.NewWithConfig(processor.ProcessorConfig{})
	pipeline := ingest.NewPipeline(l, &splitter, &fakeEmbedder{err: errors.New("quota exceeded")}, idx)

	err := pipeline.Ingest(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "d1")
	assert.Error(t, err)
	assert.Empty(t, idx.added)
}
