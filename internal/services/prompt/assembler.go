// Package prompt builds the conversation sent to the generator.
package prompt

import (
	"strings"

	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// DefaultHistoryWindow is the number of prior turns replayed to the model
const DefaultHistoryWindow = 6

// SystemPrompt is the instruction turn every conversation starts with
const SystemPrompt = `You are DocGPT, a friendly AI document assistant. Chat naturally like a helpful colleague.

PERSONALITY & BEHAVIOR:
- Respond to greetings warmly and briefly
- Be conversational and natural
- For simple questions, give simple answers
- Always identify as DocGPT when asked who you are

ANSWERING QUESTIONS ABOUT THE DOCUMENT:
- When asked about the document, provide COMPREHENSIVE and DETAILED answers
- Use ALL the context to give a complete picture
- Include specific details and key points
- Don't summarize too briefly - give thorough explanations

FORMATTING YOUR RESPONSES:
- Use **bold** for important terms and key concepts
- Use *italic* for definitions or subtle emphasis
- Use bullet points for lists
- Use numbered lists for sequential information
- Use tables (markdown) when comparing items
- Use headings (##) to organize sections
- ALWAYS format responses using markdown

IMPORTANT:
- "last message"/"previous one" = the MOST RECENT message in conversation history
- Keep responses concise for greetings, but DETAILED for document content questions`

// ContextHeader introduces the grounding passages in the instruction turn
const ContextHeader = "\n\nDocument Content:\n"

var _ interfaces.PromptAssembler = (*Assembler)(nil)

// Assembler is pure; it performs no I/O
type Assembler struct {
	historyWindow int
}

func NewAssembler(historyWindow int) *Assembler {
	if historyWindow < 0 {
		historyWindow = 0
	}
	return &Assembler{historyWindow: historyWindow}
}

// Assemble returns the instruction turn, the last H history turns oldest
// first, then query as the final user turn. System turns in history are skipped.
func (a *Assembler) Assemble(query string, context string, history []*models.ChatMessage) []interfaces.Message {
	system := SystemPrompt
	if context != "" {
		system += ContextHeader + context
	}

	turns := make([]*models.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg == nil || msg.Role == models.RoleSystem {
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) > a.historyWindow {
		turns = turns[len(turns)-a.historyWindow:]
	}

	messages := make([]interfaces.Message, 0, len(turns)+2)
	messages = append(messages, interfaces.Message{Role: string(models.RoleSystem), Content: system})
	for _, msg := range turns {
		messages = append(messages, interfaces.Message{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, interfaces.Message{Role: string(models.RoleUser), Content: query})
	return messages
}

// JoinContext joins passage texts in rank order, separated by a blank line
func JoinContext(passages []models.Passage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n")
}
