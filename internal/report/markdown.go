package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

// RenderMarkdown writes the same content as the PDF report as Markdown.
func RenderMarkdown(w io.Writer, r *models.ReviewResult) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# TechSpec Review: %s\n\n", r.File.Name)
	for _, line := range infoLines(r) {
		fmt.Fprintf(bw, "- %s\n", line)
	}
	fmt.Fprintf(bw, "\n## Overall score: %s\n\n", scoreText(r.Structure.OverallScore, 10))
	if c := strings.TrimSpace(r.Structure.OverallComment); c != "" {
		fmt.Fprintf(bw, "%s\n\n", c)
	}

	for _, sec := range r.Structure.Sections {
		badge := statusLabel(sec.Status)
		if sec.Mandatory {
			badge += " (mandatory)"
		}
		fmt.Fprintf(bw, "## %s\n\n", sec.Header)
		fmt.Fprintf(bw, "**Status:** %s  \n**Score:** %s\n\n", badge, scoreText(sec.AIScore, 5))
		if sec.AIComment != "" {
			fmt.Fprintf(bw, "**Comment:** %s\n\n", sec.AIComment)
		}
		if sec.AISuggestions != "" {
			fmt.Fprintf(bw, "**Suggestions:** %s\n\n", sec.AISuggestions)
		}
		for _, b := range sec.Blocks {
			if b.IsTable() {
				writeMarkdownTable(bw, b.Data)
				continue
			}
			fmt.Fprintf(bw, "> %s\n>\n", b.Text)
		}
		if len(sec.Blocks) > 0 {
			bw.WriteString("\n")
		}
	}

	if len(r.Annotations) > 0 {
		bw.WriteString("## Annotations\n\n")
		for _, a := range r.Annotations {
			where := ""
			if a.Section != "" {
				where = " " + a.Section + ":"
			}
			fmt.Fprintf(bw, "- **%s/%s**%s %s\n", a.Severity, a.Category, where, oneLine(a.Comment))
		}
	}

	return bw.Flush()
}

func writeMarkdownTable(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		cells := make([]string, width)
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.ReplaceAll(oneLine(row[j]), "|", "\\|")
			}
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
		if i == 0 {
			fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", width))
		}
	}
	fmt.Fprintln(w)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
