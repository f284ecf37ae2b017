package models

import "time"

// Document is an uploaded PDF owned by one user
type Document struct {
	ID         string    `json:"id"`                         // doc_{uuid}
	UserID     string    `json:"user_id" badgerhold:"index"` // Owner
	Name       string    `json:"name"`                       // Original file name
	FileURL    string    `json:"file_url"`                   // Location returned by the blob store
	BlobPath   string    `json:"-"`                          // Blob store key
	FileSize   int64     `json:"file_size"`                  // Bytes
	PageCount  int       `json:"page_count"`                 // Pages reported by the extractor
	ChunkCount int       `json:"chunk_count"`                // Vectors written by the last index run
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentSummary is a document with its session count, used by list views
type DocumentSummary struct {
	Document
	SessionCount int `json:"session_count"`
}
