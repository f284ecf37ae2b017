package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewSessionID generates a unique chat session ID with the "ses_" prefix
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}

// NewMessageID generates a unique chat message ID with the "msg_" prefix
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

// NewOrphanID generates an ID for a pending vector cleanup record
func NewOrphanID() string {
	return "orp_" + uuid.New().String()
}
