package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

const transcriptTimeFormat = "2006-01-02 15:04"

// Transcript renders chat sessions as PDF documents
type Transcript struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TranscriptRenderer = (*Transcript)(nil)

func NewTranscript(logger arbor.ILogger) *Transcript {
	return &Transcript{logger: logger}
}

// RenderTranscript writes the session title, the document name and every
// turn in order. Assistant markdown is rendered; user text is written as is.
func (t *Transcript) RenderTranscript(doc *models.Document, session *models.ChatSession, messages []*models.ChatMessage) ([]byte, error) {
	markdown := TranscriptMarkdown(doc, session, messages)
	t.logger.Debug().
		Str("session_id", session.ID).
		Int("messages", len(messages)).
		Int("markdown_len", len(markdown)).
		Msg("Rendering session transcript")

	data, err := t.convertMarkdown(markdown, session.Title)
	if err != nil {
		t.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to render transcript")
		return nil, err
	}
	return data, nil
}

// TranscriptMarkdown builds the markdown source of a transcript
func TranscriptMarkdown(doc *models.Document, session *models.ChatSession, messages []*models.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeInline(session.Title))
	if doc != nil {
		fmt.Fprintf(&b, "*Document: %s*\n\n", escapeInline(doc.Name))
	}
	b.WriteString("---\n\n")

	for _, msg := range messages {
		speaker := "You"
		if msg.Role == models.RoleAssistant {
			speaker = "DocGPT"
		}
		fmt.Fprintf(&b, "### %s (%s)\n\n", speaker, msg.CreatedAt.Format(transcriptTimeFormat))

		if msg.Role == models.RoleAssistant {
			b.WriteString(strings.TrimSpace(msg.Content))
		} else {
			b.WriteString(escapeInline(strings.TrimSpace(msg.Content)))
		}
		b.WriteString("\n\n")

		if len(msg.Sources) > 0 {
			pages := make([]string, 0, len(msg.Sources))
			for _, src := range msg.Sources {
				pages = append(pages, fmt.Sprintf("%d", src.PageNumber))
			}
			fmt.Fprintf(&b, "*Sources: page %s*\n\n", strings.Join(pages, ", "))
		}
	}
	return b.String()
}

// escapeInline keeps user text from being read as markdown
func escapeInline(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "|", `\|`, "[", `\[`, "]", `\]`,
	)
	return replacer.Replace(s)
}

func (t *Transcript) convertMarkdown(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("DocGPT", true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		logger: t.logger,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		font:   "Arial",
		size:   9,
	}

	if err := renderer.render(doc); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}
