package extract

import (
	"io"
	"unicode/utf8"

	"github.com/techspec-reviewer/backend/internal/models"
)

// TextExtractor reads UTF-8 plain text.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (e *TextExtractor) Name() string { return "text" }

func (e *TextExtractor) CanExtract(fileName string) bool {
	return hasExt(fileName, ".txt")
}

func (e *TextExtractor) Extract(r io.ReaderAt, size int64) ([]models.ContentBlock, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	return linesToBlocks(string(data)), nil
}
