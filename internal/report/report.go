// Package report renders reviewed documents for download.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/techspec-reviewer/backend/internal/models"
)

// Format is a download format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatMsgpack  Format = "msgpack"
)

// ParseFormat accepts the query values used by the download endpoint.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatMsgpack:
		return "application/x-msgpack"
	}
	return "application/json"
}

// FileName is the download name for a reviewed file.
func (f Format) FileName(original string) string {
	base := original
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "review"
	}
	return base + "_review." + string(f)
}

// Render writes the result in the given format.
func Render(w io.Writer, f Format, r *models.ReviewResult) error {
	switch f {
	case FormatPDF:
		return RenderPDF(w, r)
	case FormatMarkdown:
		return RenderMarkdown(w, r)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return fmt.Errorf("unsupported report format %q", f)
}

func scoreText(score *int, outOf int) string {
	if score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d/%d", *score, outOf)
}

func statusLabel(s models.SectionStatus) string {
	switch s {
	case models.SectionMissing:
		return "Missing"
	case models.SectionBoilerplate:
		return "Missing or Copy-Paste"
	}
	return "Present"
}
