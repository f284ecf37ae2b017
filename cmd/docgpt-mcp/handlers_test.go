package main

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// fakeDocuments serves one document owned by "alice"
type fakeDocuments struct {
	interfaces.DocumentService
	doc      models.Document
	passages []models.Passage
	lastTopK int
}

func (f *fakeDocuments) List(ctx context.Context, userID string, limit, offset int) ([]*models.DocumentSummary, int, error) {
	if userID != f.doc.UserID {
		return nil, 0, nil
	}
	return []*models.DocumentSummary{{Document: f.doc, SessionCount: 2}}, 1, nil
}

func (f *fakeDocuments) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	if documentID != f.doc.ID {
		return nil, common.NewNotFoundError("document", documentID)
	}
	if userID != f.doc.UserID {
		return nil, &common.PermissionError{Message: "document belongs to another user"}
	}
	doc := f.doc
	return &doc, nil
}

func (f *fakeDocuments) Search(ctx context.Context, userID, documentID, query string, topK int) ([]models.Passage, error) {
	if _, err := f.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	f.lastTopK = topK
	return f.passages, nil
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		doc: models.Document{
			ID:        "doc_1",
			UserID:    "alice",
			Name:      "report.pdf",
			PageCount: 3,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		passages: []models.Passage{
			{DocumentID: "doc_1", PageNumber: 2, Text: "Revenue grew 12 percent", Distance: 0.125},
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestListDocuments(t *testing.T) {
	docs := newFakeDocuments()
	out := callTool(t, handleListDocuments(docs, "alice", arbor.NewLogger()), nil)

	assert.Contains(t, out, "Documents (1 of 1)")
	assert.Contains(t, out, "**report.pdf** `doc_1` - 3 pages, 2 sessions")
}

func TestListDocuments_Empty(t *testing.T) {
	docs := newFakeDocuments()
	out := callTool(t, handleListDocuments(docs, "bob", arbor.NewLogger()), nil)

	assert.Contains(t, out, "No documents uploaded.")
}

func TestGetDocument(t *testing.T) {
	docs := newFakeDocuments()
	handler := handleGetDocument(docs, "alice", arbor.NewLogger())

	assert.Contains(t, callTool(t, handler, map[string]any{"document_id": "doc_1"}), "# report.pdf")
	assert.Contains(t, callTool(t, handler, map[string]any{}), "document_id parameter is required")
	assert.Contains(t, callTool(t, handler, map[string]any{"document_id": "doc_2"}), "Document not available")
}

func TestSearchDocument(t *testing.T) {
	docs := newFakeDocuments()
	handler := handleSearchDocument(docs, "alice", arbor.NewLogger())

	out := callTool(t, handler, map[string]any{"document_id": "doc_1", "query": "revenue", "top_k": 500})
	assert.Contains(t, out, "### 1. Page 2 (distance 0.125)")
	assert.Contains(t, out, "Revenue grew 12 percent")
	assert.Equal(t, 50, docs.lastTopK)

	out = callTool(t, handler, map[string]any{"document_id": "doc_1"})
	assert.Contains(t, out, "query parameter is required")
}

func TestSearchDocument_OtherUser(t *testing.T) {
	docs := newFakeDocuments()
	out := callTool(t, handleSearchDocument(docs, "bob", arbor.NewLogger()), map[string]any{"document_id": "doc_1", "query": "revenue"})

	assert.Contains(t, out, "Search error")
	assert.Contains(t, out, "another user")
}
