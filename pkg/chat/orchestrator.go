package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/tuber/internal/models"
	"github.com/xhad/tuber/internal/types"
)

// ErrAnswerNotSaved means the answer was generated and delivered but the
// assistant message could not be written to the conversation store.
var ErrAnswerNotSaved = errors.New("answer generated but not saved")

type OrchestratorConfig struct {
	HistoryLimit int
	// PersistPartialOnCancel writes whatever was generated before a
	// client disconnect as the assistant message. Off by default: a
	// cancelled stream leaves no assistant message, so a retry cannot
	// produce duplicates.
	PersistPartialOnCancel bool
}

// Request is one question against a conversation.
type Request struct {
	ConversationID string
	DocumentIDs    []string
	Question       string
}

// Orchestrator ties the conversation store, the retriever and the answer
// model into the per-question lifecycle: persist the question, load
// history, retrieve, synthesize, persist the answer.
type Orchestrator struct {
	config    OrchestratorConfig
	store     types.ConversationStore
	retriever types.Retriever
	model     types.ChatModel
}

func NewOrchestrator(store types.ConversationStore, retriever types.Retriever, model types.ChatModel, config OrchestratorConfig) *Orchestrator {
	if config.HistoryLimit == 0 {
		config.HistoryLimit = 14
	}

	return &Orchestrator{
		config:    config,
		store:     store,
		retriever: retriever,
		model:     model,
	}
}

// Ask answers the question in one piece.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (string, error) {
	history, chunks, err := o.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	answer, err := o.model.Answer(ctx, req.Question, history, chunks)
	if err != nil {
		return "", err
	}

	return answer, o.persistAnswer(ctx, req.ConversationID, answer)
}

// AskStream answers the question incrementally, calling emit for each
// fragment, and persists the full answer once the stream is exhausted.
// The accumulated text is returned alongside any error so callers can
// tell a mid-stream failure from one that produced no output.
func (o *Orchestrator) AskStream(ctx context.Context, req Request, emit func(fragment string) error) (string, error) {
	history, chunks, err := o.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	answer, err := o.model.AnswerStream(ctx, req.Question, history, chunks, emit)
	if err != nil {
		if wasCancelled(ctx, err) && o.config.PersistPartialOnCancel && answer != "" {
			// The request context is already dead; the write gets its own.
			if perr := o.store.Append(context.WithoutCancel(ctx), req.ConversationID, models.RoleAssistant, answer); perr != nil {
				return answer, fmt.Errorf("%w: %v", ErrAnswerNotSaved, perr)
			}
		}
		return answer, err
	}

	return answer, o.persistAnswer(ctx, req.ConversationID, answer)
}

// prepare records the user message, loads the conversation history in
// chronological order and retrieves the relevant chunks. A failure here
// leaves the user message persisted and writes nothing else.
func (o *Orchestrator) prepare(ctx context.Context, req Request) ([]models.Message, []models.ScoredChunk, error) {
	if err := o.store.Append(ctx, req.ConversationID, models.RoleUser, req.Question); err != nil {
		return nil, nil, fmt.Errorf("failed to record question: %w", err)
	}

	recent, err := o.store.Recent(ctx, req.ConversationID, o.config.HistoryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Recent is newest first and includes the question just written;
	// drop it so the first question of a conversation sees no history.
	if len(recent) > 0 && recent[0].Role == models.RoleUser && recent[0].Content == req.Question {
		recent = recent[1:]
	}
	history := reverse(recent)

	chunks, err := o.retriever.Retrieve(ctx, req.Question, history, req.DocumentIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	return history, chunks, nil
}

func (o *Orchestrator) persistAnswer(ctx context.Context, conversationID, answer string) error {
	if err := o.store.Append(ctx, conversationID, models.RoleAssistant, answer); err != nil {
		return fmt.Errorf("%w: %v", ErrAnswerNotSaved, err)
	}
	return nil
}

func wasCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// reverse returns the messages oldest first without mutating the input.
func reverse(messages []models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	for i, msg := range messages {
		out[len(messages)-1-i] = msg
	}
	return out
}
