// Package extract turns uploaded documents into ordered content blocks.
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

var (
	ErrNoExtractor     = errors.New("no suitable extractor")
	ErrInvalidEncoding = errors.New("text is not valid UTF-8")
	ErrNoText          = errors.New("no text could be extracted")
	ErrMalformed       = errors.New("malformed document")
)

// Extractor defines the interface for document text extractors.
type Extractor interface {
	// Name returns the unique name of the extractor.
	Name() string
	// CanExtract returns true if this extractor handles the given file name.
	CanExtract(fileName string) bool
	// Extract reads the whole document and returns its blocks in document order.
	Extract(r io.ReaderAt, size int64) ([]models.ContentBlock, error)
}

// ExtractFile opens path and extracts it with the extractor matching name.
// The stored file has no extension, so the original file name picks the extractor.
func (r *Registry) ExtractFile(path, name string) ([]models.ContentBlock, error) {
	ex, err := r.FindExtractor(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	blocks, err := ex.Extract(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s extractor: %w", ex.Name(), err)
	}
	if len(blocks) == 0 {
		return nil, ErrNoText
	}
	return blocks, nil
}

// linesToBlocks splits plain text into one paragraph block per non-empty line.
func linesToBlocks(text string) []models.ContentBlock {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks []models.ContentBlock
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		blocks = append(blocks, models.Paragraph(line))
	}
	return blocks
}
