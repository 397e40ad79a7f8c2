package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/techspec-reviewer/backend/internal/models"
)

// PDFExtractor pulls the plain text of every page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) CanExtract(fileName string) bool {
	return hasExt(fileName, ".pdf")
}

func (e *PDFExtractor) Extract(r io.ReaderAt, size int64) (blocks []models.ContentBlock, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			blocks = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return linesToBlocks(sb.String()), nil
}
