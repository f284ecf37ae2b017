package models

import "time"

// OrphanRecord marks document vectors that a delete failed to remove.
// The collector retries until the vectors are gone.
type OrphanRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id" badgerhold:"index"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
