package main

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/interfaces"
)

// registerTools adds every document tool to the server, scoped to one user
func registerTools(s *server.MCPServer, documents interfaces.DocumentService, userID string, logger arbor.ILogger) {
	s.AddTool(createListDocumentsTool(), handleListDocuments(documents, userID, logger))
	s.AddTool(createGetDocumentTool(), handleGetDocument(documents, userID, logger))
	s.AddTool(createSearchDocumentTool(), handleSearchDocument(documents, userID, logger))
}

// createListDocumentsTool returns the list_documents tool definition
func createListDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List the uploaded PDF documents, most recent first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Results to skip (default: 0)"),
		),
	)
}

// createGetDocumentTool returns the get_document tool definition
func createGetDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Retrieve the metadata of one document by its ID"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID (format: doc_{uuid})"),
		),
	)
}

// createSearchDocumentTool returns the search_document tool definition
func createSearchDocumentTool() mcp.Tool {
	return mcp.NewTool("search_document",
		mcp.WithDescription("Semantic search over the passages of one document"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID (format: doc_{uuid})"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question or keywords"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Passages to return (default: configured top_k, max: 50)"),
		),
	)
}
