package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/interfaces"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleListDocuments implements the list_documents tool
func handleListDocuments(documents interfaces.DocumentService, userID string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := request.GetInt("offset", 0)
		if offset < 0 {
			offset = 0
		}

		docs, total, err := documents.List(ctx, userID, limit, offset)
		if err != nil {
			logger.Error().Err(err).Msg("List documents failed")
			return textResult(fmt.Sprintf("Error listing documents: %v", err)), nil
		}
		return textResult(formatDocumentList(docs, total)), nil
	}
}

// handleGetDocument implements the get_document tool
func handleGetDocument(documents interfaces.DocumentService, userID string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil || docID == "" {
			return textResult("Error: document_id parameter is required"), nil
		}

		doc, err := documents.Get(ctx, userID, docID)
		if err != nil {
			logger.Warn().Err(err).Str("document_id", docID).Msg("Get document failed")
			return textResult(fmt.Sprintf("Document not available: %v", err)), nil
		}
		return textResult(formatDocument(doc)), nil
	}
}

// handleSearchDocument implements the search_document tool
func handleSearchDocument(documents interfaces.DocumentService, userID string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil || docID == "" {
			return textResult("Error: document_id parameter is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		// Zero falls back to the configured top_k
		topK := request.GetInt("top_k", 0)
		if topK > 50 {
			topK = 50
		}

		passages, err := documents.Search(ctx, userID, docID, query, topK)
		if err != nil {
			logger.Error().Err(err).Str("document_id", docID).Msg("Search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		return textResult(formatPassages(query, passages)), nil
	}
}
