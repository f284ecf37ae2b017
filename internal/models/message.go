package models

import "time"

// Role of a chat message author
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Source is a passage cited by an assistant message
type Source struct {
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
	Excerpt    string  `json:"excerpt"`
	Distance   float32 `json:"distance"`
}

// ChatMessage is one turn of a session.
// CreatedAt is strictly increasing within a session.
type ChatMessage struct {
	ID        string    `json:"id"`                            // msg_{uuid}
	SessionID string    `json:"session_id" badgerhold:"index"` // Parent session
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
