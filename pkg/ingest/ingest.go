package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/tuber/internal/types"
)

// ErrEmptySource means the video produced no usable transcript text.
var ErrEmptySource = errors.New("source produced no transcript text")

// Pipeline turns a video URL into embedded chunks in the vector index.
type Pipeline struct {
	loader   types.TranscriptLoader
	splitter types.Splitter
	embedder types.Embedder
	index    types.VectorIndex
}

func NewPipeline(loader types.TranscriptLoader, splitter types.Splitter, embedder types.Embedder, index types.VectorIndex) *Pipeline {
	return &Pipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		index:    index,
	}
}

// Ingest loads the transcript for url, splits it into overlapping chunks
// tagged with documentID, embeds them and writes them to the vector index
// as one batch. A failure at any step writes nothing.
func (p *Pipeline) Ingest(ctx context.Context, url, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document id is required before ingestion")
	}

	doc, err := p.loader.Load(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return ErrEmptySource
	}

	doc.ID = documentID
	// The title prefix keeps "what is this video about" style questions
	// retrievable even when the transcript never names the topic.
	doc.Content = fmt.Sprintf("Video title: %s | Video context: %s", doc.Title, doc.Content)

	chunks, err := p.splitter.Split(doc)
	if err != nil {
		return fmt.Errorf("failed to split transcript: %w", err)
	}
	if len(chunks) == 0 {
		return ErrEmptySource
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.index.AddChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	return nil
}
