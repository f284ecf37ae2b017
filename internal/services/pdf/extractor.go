// -----------------------------------------------------------------------
// PDF Extractor - per-page text for chunking
// Uses pdfcpu to validate the file and decode page content streams
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// contentFileRegex matches the page number in pdfcpu content dump file names
var contentFileRegex = regexp.MustCompile(`(?i)page_(\d+)`)

// NewExtractor creates a PDF extractor that stages files under the OS temp dir
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "docgpt-pdf")
	_ = os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// stage writes data to a unique temp file; pdfcpu's file API works on paths
func (e *Extractor) stage(data []byte) (string, func(), error) {
	f, err := os.CreateTemp(e.tempDir, "extract-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (e *Extractor) readContext(path string) (*model.Context, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, common.NewValidationError("file", "not a readable PDF: %v", err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, common.NewValidationError("file", "encrypted PDFs are not supported")
	}
	return pdfCtx, nil
}

// PageCount validates the PDF and returns its page count
func (e *Extractor) PageCount(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, cleanup, err := e.stage(data)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	pdfCtx, err := e.readContext(path)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// ExtractPages returns the text of every page in order. A page whose content
// stream yields no text is returned with empty Text.
func (e *Extractor) ExtractPages(ctx context.Context, data []byte) ([]models.Page, error) {
	path, cleanup, err := e.stage(data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pdfCtx, err := e.readContext(path)
	if err != nil {
		return nil, err
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.IsDir() {
			continue
		}
		matches := contentFileRegex.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		pageNum, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			e.logger.Warn().Err(err).Int("page", pageNum).Msg("Failed to read page content")
			continue
		}
		pageTexts[pageNum] = TextFromContentStream(content)
	}

	pages := make([]models.Page, 0, pageCount)
	withText := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := pageTexts[pageNum]
		if text != "" {
			withText++
		}
		pages = append(pages, models.Page{Number: pageNum, Text: text})
	}

	e.logger.Debug().
		Int("page_count", pageCount).
		Int("pages_with_text", withText).
		Msg("Extracted PDF pages")
	return pages, nil
}
