package models

import "time"

// User is the authenticated owner of documents.
// Users are created on first sight from verified token claims.
type User struct {
	ID        string    `json:"id"` // Subject claim of the bearer token
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
