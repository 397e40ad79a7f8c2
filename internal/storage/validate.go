package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
)

// DefaultMaxFileSize is the upload limit when none is configured (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// DefaultAllowedTypes lists the document extensions accepted for review.
var DefaultAllowedTypes = []string{".pdf", ".docx", ".txt", ".html", ".htm"}

// ParseAllowedTypes turns ".pdf, .DOCX,txt" into a normalized extension list.
func ParseAllowedTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// ValidateUpload checks a file's extension and size before it is stored.
// Empty files are rejected since nothing in them can be reviewed.
func ValidateUpload(name string, size int64, allowed []string, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	ok := false
	for _, a := range allowed {
		if a == ext {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedType, ext, strings.Join(allowed, ", "))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the maximum of %s", ErrFileTooLarge, size, formatSize(maxSize))
	}
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
