package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/tuber/internal/models"
)

func TestNewWithConfig(t *testing.T) {
	engine, err := NewWithConfig(ChatConfig{
		Provider:    "ollama",
		Model:       "mistral",
		BaseURL:     "http://localhost:11434",
		Temperature: 0.5,
		MaxTokens:   1000,
	})
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigRejectsBadValues(t *testing.T) {
	_, err := NewWithConfig(ChatConfig{Provider: "ollama", Temperature: 3})
	assert.Error(t, err)

	_, err = NewWithConfig(ChatConfig{Provider: "ollama", MaxTokens: -1})
	assert.Error(t, err)

	_, err = NewWithConfig(ChatConfig{Provider: "watson"})
	assert.Error(t, err)
}

func TestHistoryContents(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "What is the topic?"},
		{Role: models.RoleAssistant, Content: "It's about X."},
	}

	content := historyContents(history)
	require.Len(t, content, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[1].Role)
}

func TestBuildAnswerMessages(t *testing.T) {
	engine := &ChatEngine{}

	history := []models.Message{
		{Role: models.RoleUser, Content: "What is the topic?"},
		{Role: models.RoleAssistant, Content: "It's about X."},
	}
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{Content: "first passage"}},
		{Chunk: models.Chunk{Content: "second passage"}},
	}

	content := engine.buildAnswerMessages("How does it relate to Y?", history, chunks)

	// system, two history turns, the question
	require.Len(t, content, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[3].Role)

	system := content[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "first passage")
	assert.Contains(t, system, "second passage")

	question := content[3].Parts[0].(llms.TextContent).Text
	assert.Equal(t, "How does it relate to Y?", question)
}

func TestBuildAnswerMessagesNoContext(t *testing.T) {
	engine := &ChatEngine{}

	content := engine.buildAnswerMessages("What is the video about?", nil, nil)
	require.Len(t, content, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
}
