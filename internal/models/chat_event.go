package models

// ChatEvent is one frame of a streamed answer. Exactly one of Chunk, Done or
// Error is set.
type ChatEvent struct {
	Chunk   string       `json:"chunk,omitempty"`
	Done    bool         `json:"done,omitempty"`
	Message *ChatMessage `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ChatTurnState tracks a chat turn through the pipeline
type ChatTurnState string

const (
	TurnReceived          ChatTurnState = "received"
	TurnContextRetrieved  ChatTurnState = "context_retrieved"
	TurnPersistedUserTurn ChatTurnState = "persisted_user_turn"
	TurnStreaming         ChatTurnState = "streaming"
	TurnCompleted         ChatTurnState = "completed"
	TurnFailedMidstream   ChatTurnState = "failed_midstream"
)

// ChatAnswer is the result of a non-streamed turn
type ChatAnswer struct {
	UserMessage      *ChatMessage `json:"user_message"`
	AssistantMessage *ChatMessage `json:"assistant_message"`
}

// IndexResult summarizes one indexing run
type IndexResult struct {
	DocumentID      string `json:"document_id"`
	PageCount       int    `json:"page_count"`
	ChunkCount      int    `json:"chunk_count"`
	CollectionReset bool   `json:"collection_reset"`
}
