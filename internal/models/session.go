package models

import "time"

// DefaultSessionTitle is the title of a session before its first user message
const DefaultSessionTitle = "New Chat"

// SessionTitleMaxLength is the number of characters kept from the first user
// message when deriving a session title
const SessionTitleMaxLength = 50

// ChatSession is a conversation about one document
type ChatSession struct {
	ID           string    `json:"id"`                             // ses_{uuid}
	DocumentID   string    `json:"document_id" badgerhold:"index"` // Parent document
	Title        string    `json:"title"`
	TitleDerived bool      `json:"-"` // Set once the title has been taken from the first user message
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeriveSessionTitle returns the first 50 characters of content, with "..."
// appended when content was longer.
func DeriveSessionTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= SessionTitleMaxLength {
		return content
	}
	return string(runes[:SessionTitleMaxLength]) + "..."
}
