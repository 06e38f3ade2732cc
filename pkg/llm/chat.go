package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/tuber/internal/models"
)

const (
	// Instruction for turning a follow-up question into a standalone one.
	rephraseTemplate = "Given a chat history and latest user question " +
		"which might reference context in the chat history, " +
		"formulate a standalone question which can be understood " +
		"without the chat history. Do NOT answer the question, " +
		"just reformulate it if needed and otherwise return it as is."

	answerTemplate = "You are an assistant for question answering tasks. " +
		"Use the following pieces of retrieved context to answer " +
		"the question."
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string // "googleai" or "ollama"
	APIKey         string
	BaseURL        string // Ollama server URL
	Model          string
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
}

// ChatEngine is an engine that uses an LLM to rewrite questions and
// generate answers from retrieved context.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	model, err := newModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

func newModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case "", "googleai":
		if config.Model == "" {
			config.Model = "gemini-2.0-flash"
		}
		return googleai.New(context.Background(),
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultModel(config.Model))
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

// Rephrase reformulates the question into a standalone query using the
// conversation history. It returns the question unchanged when there is
// no history to resolve references against.
func (ce *ChatEngine) Rephrase(ctx context.Context, question string, history []models.Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, rephraseTemplate),
	}
	content = append(content, historyContents(history)...)
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, question))

	ctx, cancel := context.WithTimeout(ctx, ce.config.RequestTimeout)
	defer cancel()

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("rephrase error: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return question, nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Answer generates a complete response from the question, history and
// retrieved chunks.
func (ce *ChatEngine) Answer(ctx context.Context, question string, history []models.Message, chunks []models.ScoredChunk) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.RequestTimeout)
	defer cancel()

	response, err := ce.llm.GenerateContent(ctx, ce.buildAnswerMessages(question, history, chunks),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature))
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}

// AnswerStream generates a response incrementally, calling emit for each
// fragment as it arrives. The accumulated answer is returned once the
// stream ends, including whatever arrived before a mid-stream failure.
func (ce *ChatEngine) AnswerStream(ctx context.Context, question string, history []models.Message, chunks []models.ScoredChunk, emit func(fragment string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.RequestTimeout)
	defer cancel()

	var answer strings.Builder

	_, err := ce.llm.GenerateContent(ctx, ce.buildAnswerMessages(question, history, chunks),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			answer.Write(chunk)
			return emit(string(chunk))
		}))
	if err != nil {
		return answer.String(), fmt.Errorf("chat stream error: %w", err)
	}

	return answer.String(), nil
}

func (ce *ChatEngine) buildAnswerMessages(question string, history []models.Message, chunks []models.ScoredChunk) []llms.MessageContent {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		contextBuilder.WriteString(chunk.Content)
		contextBuilder.WriteString("\n\n")
	}

	system := answerTemplate + "\n\n" + contextBuilder.String()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
	}
	content = append(content, historyContents(history)...)
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, question))

	return content
}

// historyContents replays stored messages as alternating chat turns.
func historyContents(history []models.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}
