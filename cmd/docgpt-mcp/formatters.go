package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/docgpt/internal/models"
)

const previewLength = 400

// formatDocumentList formats a page of documents as markdown
func formatDocumentList(docs []*models.DocumentSummary, total int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Documents (%d of %d)\n\n", len(docs), total))

	if len(docs) == 0 {
		sb.WriteString("No documents uploaded.\n")
		return sb.String()
	}

	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("%d. **%s** `%s` - %d pages, %d sessions, uploaded %s\n",
			i+1, doc.Name, doc.ID, doc.PageCount, doc.SessionCount, doc.CreatedAt.Format(time.RFC3339)))
	}
	return sb.String()
}

// formatDocument formats a single document as markdown
func formatDocument(doc *models.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Name))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	sb.WriteString(fmt.Sprintf("**Pages:** %d\n", doc.PageCount))
	sb.WriteString(fmt.Sprintf("**Chunks:** %d\n", doc.ChunkCount))
	sb.WriteString(fmt.Sprintf("**Size:** %d bytes\n", doc.FileSize))
	sb.WriteString(fmt.Sprintf("**Uploaded:** %s\n", doc.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Updated:** %s\n", doc.UpdatedAt.Format(time.RFC3339)))
	return sb.String()
}

// formatPassages formats ranked search passages as markdown
func formatPassages(query string, passages []models.Passage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Passages for \"%s\" (%d results)\n\n", query, len(passages)))

	if len(passages) == 0 {
		sb.WriteString("No matching passages.\n")
		return sb.String()
	}

	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("### %d. Page %d (distance %.3f)\n", i+1, p.PageNumber, p.Distance))
		text := p.Text
		if runes := []rune(text); len(runes) > previewLength {
			text = string(runes[:previewLength]) + "..."
		}
		sb.WriteString(text)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}
