package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/techspec-reviewer/backend/internal/models"
)

// RenderPDF writes the annotated review as an A4 PDF.
func RenderPDF(w io.Writer, r *models.ReviewResult) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Review %s", r.File.Name), true)
	pdf.SetAuthor("TechSpec Reviewer", false)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr("TechSpec Review: "+r.File.Name), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range infoLines(r) {
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Overall score: "+scoreText(r.Structure.OverallScore, 10))
	pdf.Ln(9)
	if c := strings.TrimSpace(r.Structure.OverallComment); c != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, tr(c), "", "L", false)
		pdf.Ln(4)
	}

	for _, sec := range r.Structure.Sections {
		writeSectionPDF(pdf, tr, sec)
	}

	if len(r.Annotations) > 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 8, "Annotations")
		pdf.Ln(10)
		pdf.SetFont("Helvetica", "", 10)
		for _, a := range r.Annotations {
			label := fmt.Sprintf("[%s/%s]", a.Severity, a.Category)
			if a.Section != "" {
				label += " " + a.Section
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, 5, tr(label), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(a.Comment), "", "L", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeSectionPDF(pdf *gofpdf.Fpdf, tr func(string) string, sec models.SectionContent) {
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.MultiCell(0, 7, tr(sec.Header), "", "L", false)

	pdf.SetFont("Helvetica", "B", 10)
	if sec.Status == models.SectionPresent {
		pdf.SetTextColor(0, 128, 0)
	} else {
		pdf.SetTextColor(200, 0, 0)
	}
	badge := statusLabel(sec.Status)
	if sec.Mandatory {
		badge += " (mandatory)"
	}
	pdf.Cell(0, 5, badge)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, "Score: "+scoreText(sec.AIScore, 5))
	pdf.Ln(5)
	if sec.AIComment != "" {
		pdf.MultiCell(0, 5, tr("Comment: "+sec.AIComment), "", "L", false)
	}
	if sec.AISuggestions != "" {
		pdf.MultiCell(0, 5, tr("Suggestions: "+sec.AISuggestions), "", "L", false)
	}

	if len(sec.Blocks) > 0 {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		for _, b := range sec.Blocks {
			if b.IsTable() {
				for _, row := range b.Data {
					pdf.MultiCell(0, 4.5, tr(strings.Join(row, " | ")), "1", "L", false)
				}
				continue
			}
			pdf.MultiCell(0, 4.5, tr(b.Text), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)
}

func infoLines(r *models.ReviewResult) []string {
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Title", r.Info.Title)
	add("Version", r.Info.Version)
	add("Date", r.Info.Date)
	add("Authors", strings.Join(r.Info.Authors, ", "))
	add("Status", r.Info.Status)
	add("Reviewed by", strings.TrimSpace(r.Provider+" "+r.ModelID))
	if !r.CreatedAt.IsZero() {
		add("Reviewed at", r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return lines
}
