package types

import (
	"context"

	"github.com/xhad/tuber/internal/models"
)

// Core interfaces

// TranscriptLoader fetches the transcript text for a video URL.
type TranscriptLoader interface {
	Load(ctx context.Context, url string) (models.Document, error)
}

// Splitter breaks a document into overlapping chunks for indexing.
type Splitter interface {
	Split(doc models.Document) ([]models.Chunk, error)
}

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel is the language model behind rewriting and answering.
type ChatModel interface {
	// Rephrase turns a follow-up question into a standalone one using the
	// history. It must not answer the question.
	Rephrase(ctx context.Context, question string, history []models.Message) (string, error)

	// Answer generates the complete answer from the retrieved context.
	Answer(ctx context.Context, question string, history []models.Message, chunks []models.ScoredChunk) (string, error)

	// AnswerStream calls emit for each generated fragment and returns the
	// accumulated answer once generation finishes.
	AnswerStream(ctx context.Context, question string, history []models.Message, chunks []models.ScoredChunk, emit func(fragment string) error) (string, error)
}

// VectorIndex stores chunk embeddings and serves similarity search.
type VectorIndex interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, embedding []float32, limit int, documentIDs []string) ([]models.ScoredChunk, error)
}

// ConversationStore is the append-only message table.
type ConversationStore interface {
	Append(ctx context.Context, conversationID, role, content string) error
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// Retriever fetches the chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, history []models.Message, documentIDs []string) ([]models.ScoredChunk, error)
}
