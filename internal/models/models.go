package models

import "time"

// Message roles stored in conversation_messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is one ingested source, a video transcript.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a bounded slice of a document's transcript, embedded for search.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Embedding  []float32
	Metadata   map[string]interface{}
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Message is one turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}
