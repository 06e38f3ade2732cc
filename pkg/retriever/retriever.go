package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/tuber/internal/models"
	"github.com/xhad/tuber/internal/types"
)

// ErrFilterRequired is returned when the configuration demands a document
// id filter and the query carries none.
var ErrFilterRequired = errors.New("a document id filter is required")

// Rephraser rewrites a follow-up question into a standalone one.
type Rephraser interface {
	Rephrase(ctx context.Context, question string, history []models.Message) (string, error)
}

type RetrieverConfig struct {
	TopK int
	// RestrictToFilter rejects unfiltered queries instead of searching
	// every document.
	RestrictToFilter bool
}

// HistoryAwareRetriever rewrites the question against the conversation
// history before searching the vector index.
type HistoryAwareRetriever struct {
	config   RetrieverConfig
	model    Rephraser
	embedder types.Embedder
	index    types.VectorIndex
}

func New(model Rephraser, embedder types.Embedder, index types.VectorIndex, config RetrieverConfig) *HistoryAwareRetriever {
	if config.TopK == 0 {
		config.TopK = 5
	}

	return &HistoryAwareRetriever{
		config:   config,
		model:    model,
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns the chunks most relevant to the question, ranked by
// similarity. With no history the question is searched verbatim and no
// rewrite call is made.
func (r *HistoryAwareRetriever) Retrieve(ctx context.Context, question string, history []models.Message, documentIDs []string) ([]models.ScoredChunk, error) {
	if len(documentIDs) == 0 && r.config.RestrictToFilter {
		return nil, ErrFilterRequired
	}

	query := question
	if len(history) > 0 {
		rewritten, err := r.model.Rephrase(ctx, question, history)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite question: %w", err)
		}
		if rewritten != "" {
			query = rewritten
		}
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := r.index.Search(ctx, embedding, r.config.TopK, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	return chunks, nil
}
