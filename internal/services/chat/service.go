package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/llm"
	"github.com/ternarybob/docgpt/internal/services/prompt"
)

const (
	// Default page size for message listing
	defaultMessageLimit = 100

	// RetrievalApology is stored as the answer when the document could not be searched
	RetrievalApology = "I apologize, but I'm having trouble accessing the document content. Please try again."

	// Separates a partial answer from the apology that ends it
	apologySeparator = "\n\n"
)

// Service implements ChatService: one retrieval-augmented turn per call
type Service struct {
	sessions  interfaces.SessionService
	titles    interfaces.SessionStorage
	messages  interfaces.MessageStorage
	retriever interfaces.Retriever
	assembler interfaces.PromptAssembler
	generator interfaces.Generator
	rag       common.RAGConfig
	logger    arbor.ILogger
}

// NewService creates a new chat service
func NewService(
	sessions interfaces.SessionService,
	storage interfaces.StorageManager,
	retriever interfaces.Retriever,
	assembler interfaces.PromptAssembler,
	generator interfaces.Generator,
	config *common.RAGConfig,
	logger arbor.ILogger,
) interfaces.ChatService {
	return &Service{
		sessions:  sessions,
		titles:    storage.SessionStorage(),
		messages:  storage.MessageStorage(),
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		rag:       *config,
		logger:    logger,
	}
}

// turn carries one chat turn through its states
type turn struct {
	state     models.ChatTurnState
	session   *models.ChatSession
	document  *models.Document
	query     string
	passages  []models.Passage
	history   []*models.ChatMessage
	user      *models.ChatMessage
	assistant *models.ChatMessage

	// retrievalErr is set when the turn continues without grounding context
	retrievalErr error
}

func (s *Service) advance(t *turn, next models.ChatTurnState) {
	s.logger.Debug().
		Str("session_id", t.session.ID).
		Str("from", string(t.state)).
		Str("to", string(next)).
		Msg("Chat turn state")
	t.state = next
}

// begin runs the turn up to PERSISTED_USER_TURN. Nothing is written when it
// fails before the user turn is stored.
func (s *Service) begin(ctx context.Context, userID, sessionID, content string) (*turn, error) {
	query := strings.TrimSpace(content)
	if query == "" {
		return nil, common.NewValidationError("message", "message must not be empty")
	}

	session, doc, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	t := &turn{state: models.TurnReceived, session: session, document: doc, query: query}

	passages, err := s.retriever.Retrieve(ctx, doc.ID, query, s.rag.TopK)
	switch {
	case err == nil:
		t.passages = passages
		s.advance(t, models.TurnContextRetrieved)
	case retrievalIsFatal(ctx, err):
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	default:
		// Backend outages still record the question and an apology
		s.logger.Warn().Err(err).Str("session_id", session.ID).Str("document_id", doc.ID).Msg("Context retrieval failed, answering with apology")
		t.retrievalErr = err
	}

	// History is read before the user turn is stored so it never contains the query
	history, err := s.messages.RecentMessages(ctx, session.ID, s.rag.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	t.history = history

	// The user turn survives a client that disconnects from here on
	persistCtx := context.WithoutCancel(ctx)
	t.user = &models.ChatMessage{SessionID: session.ID, Role: models.RoleUser, Content: query}
	if err := s.messages.AppendMessage(persistCtx, t.user); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	s.advance(t, models.TurnPersistedUserTurn)

	derived, err := s.titles.DeriveTitle(persistCtx, session.ID, query)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to derive session title")
	} else if derived {
		s.logger.Debug().Str("session_id", session.ID).Msg("Session title derived from first message")
	}
	return t, nil
}

// retrievalIsFatal reports retrieval errors that reject the request outright.
// Anything else is an unavailable backend.
func retrievalIsFatal(ctx context.Context, err error) bool {
	var dimErr *common.DimensionMismatchError
	return ctx.Err() != nil ||
		common.IsValidation(err) ||
		common.IsNotFound(err) ||
		common.IsPermission(err) ||
		errors.As(err, &dimErr)
}

// finish stores the assistant turn and moves to the terminal state
func (s *Service) finish(ctx context.Context, t *turn, answer string, terminal models.ChatTurnState) error {
	persistCtx := context.WithoutCancel(ctx)
	t.assistant = &models.ChatMessage{
		SessionID: t.session.ID,
		Role:      models.RoleAssistant,
		Content:   answer,
		Sources:   s.sources(t.passages),
	}
	if err := s.messages.AppendMessage(persistCtx, t.assistant); err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}
	if err := s.titles.TouchSession(persistCtx, t.session.ID, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("session_id", t.session.ID).Msg("Failed to touch session")
	}
	s.advance(t, terminal)

	s.logger.Info().
		Str("session_id", t.session.ID).
		Str("document_id", t.document.ID).
		Str("state", string(terminal)).
		Int("passages", len(t.passages)).
		Int("answer_len", len(answer)).
		Msg("Chat turn finished")
	return nil
}

// sources cites the best passages with a truncated excerpt
func (s *Service) sources(passages []models.Passage) []models.Source {
	n := min(s.rag.SourceCount, len(passages))
	if n <= 0 {
		return nil
	}
	sources := make([]models.Source, 0, n)
	for _, p := range passages[:n] {
		sources = append(sources, models.Source{
			PageNumber: p.PageNumber,
			ChunkIndex: p.ChunkIndex,
			Excerpt:    excerpt(p.Text, s.rag.ExcerptLength),
			Distance:   p.Distance,
		})
	}
	return sources
}

// excerpt cuts text to length runes, marking a cut with "..."
func excerpt(text string, length int) string {
	runes := []rune(text)
	if length <= 0 || len(runes) <= length {
		return text
	}
	return string(runes[:length]) + "..."
}

func (s *Service) conversation(t *turn) []interfaces.Message {
	return s.assembler.Assemble(t.query, prompt.JoinContext(t.passages), t.history)
}

// Stream runs one turn, emitting answer fragments as they arrive and finally
// the stored assistant message. A generation failure after the user turn is
// stored still ends with a stored assistant turn holding the apology. When
// emit fails the remaining answer is abandoned and the partial one is stored.
func (s *Service) Stream(ctx context.Context, userID, sessionID, content string, emit func(models.ChatEvent) error) error {
	t, err := s.begin(ctx, userID, sessionID, content)
	if err != nil {
		return err
	}
	if t.retrievalErr != nil {
		return s.streamApology(ctx, t, emit)
	}
	s.advance(t, models.TurnStreaming)

	var answer strings.Builder
	terminal := models.TurnCompleted
	var emitErr error

	for fragment, genErr := range s.generator.GenerateStream(ctx, s.conversation(t)) {
		if genErr != nil {
			terminal = models.TurnFailedMidstream
			s.logger.Warn().Err(genErr).Str("session_id", t.session.ID).Int("received", answer.Len()).Msg("Answer stream failed")
			if answer.Len() > 0 {
				fragment = apologySeparator + fragment
			}
		}
		answer.WriteString(fragment)
		if err := emit(models.ChatEvent{Chunk: fragment}); err != nil {
			terminal = models.TurnFailedMidstream
			emitErr = err
			break
		}
	}

	text := answer.String()
	if emitErr != nil && text == "" {
		text = llm.StreamApology
	}
	if err := s.finish(ctx, t, text, terminal); err != nil {
		if emitErr == nil {
			_ = emit(models.ChatEvent{Error: "Failed to save the answer"})
		}
		return err
	}
	if emitErr != nil {
		return fmt.Errorf("failed to deliver answer: %w", emitErr)
	}
	return emit(models.ChatEvent{Done: true, Message: t.assistant})
}

// streamApology ends a turn whose context could not be retrieved
func (s *Service) streamApology(ctx context.Context, t *turn, emit func(models.ChatEvent) error) error {
	if err := s.finish(ctx, t, RetrievalApology, models.TurnFailedMidstream); err != nil {
		_ = emit(models.ChatEvent{Error: "Failed to save the answer"})
		return err
	}
	if err := emit(models.ChatEvent{Chunk: RetrievalApology}); err != nil {
		return fmt.Errorf("failed to deliver answer: %w", err)
	}
	return emit(models.ChatEvent{Done: true, Message: t.assistant})
}

// Answer runs one turn without streaming
func (s *Service) Answer(ctx context.Context, userID, sessionID, content string) (*models.ChatAnswer, error) {
	t, err := s.begin(ctx, userID, sessionID, content)
	if err != nil {
		return nil, err
	}

	answer, terminal := RetrievalApology, models.TurnFailedMidstream
	if t.retrievalErr == nil {
		s.advance(t, models.TurnStreaming)
		answer, terminal = s.generator.Generate(ctx, s.conversation(t)), models.TurnCompleted
	}
	if err := s.finish(ctx, t, answer, terminal); err != nil {
		return nil, err
	}
	return &models.ChatAnswer{UserMessage: t.user, AssistantMessage: t.assistant}, nil
}

func (s *Service) ListMessages(ctx context.Context, userID, sessionID string, limit, offset int) ([]*models.ChatMessage, error) {
	if _, _, err := s.sessions.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.ListMessages(ctx, sessionID, limit, offset)
}

// DeleteMessage removes one message after checking the caller owns its session
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if _, _, err := s.sessions.Get(ctx, userID, msg.SessionID); err != nil {
		return err
	}
	return s.messages.DeleteMessage(ctx, messageID)
}

// ClearHistory deletes every message of the session and returns how many were removed
func (s *Service) ClearHistory(ctx context.Context, userID, sessionID string) (int, error) {
	if _, _, err := s.sessions.Get(ctx, userID, sessionID); err != nil {
		return 0, err
	}
	n, err := s.messages.ClearMessages(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Int("deleted", n).Msg("Chat history cleared")
	return n, nil
}
