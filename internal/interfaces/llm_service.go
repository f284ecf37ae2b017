package interfaces

import (
	"context"
	"iter"

	"github.com/ternarybob/docgpt/internal/models"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// Generator produces answers from an assembled conversation.
// Neither method returns an error: failures surface as text so the chat
// pipeline can always persist an assistant turn.
type Generator interface {
	// Generate returns the full answer, or a message describing the failure
	Generate(ctx context.Context, messages []Message) string

	// GenerateStream yields answer fragments in order with a nil error. On
	// failure it yields a single apology fragment paired with the cause, then ends.
	GenerateStream(ctx context.Context, messages []Message) iter.Seq2[string, error]

	// ModelInfo names the provider and model
	ModelInfo() string
}

// Retriever finds the passages of one document closest to a query
type Retriever interface {
	Retrieve(ctx context.Context, documentID string, query string, topK int) ([]models.Passage, error)
}

// PromptAssembler builds the message list sent to the generator.
// context is the grounding text; empty context omits the document section.
type PromptAssembler interface {
	Assemble(query string, context string, history []*models.ChatMessage) []Message
}
