package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/techspec-reviewer/backend/internal/models"
)

const htmlBlockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, table"

// HTMLExtractor reads text blocks and tables from HTML exports.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor { return &HTMLExtractor{} }

func (e *HTMLExtractor) Name() string { return "html" }

func (e *HTMLExtractor) CanExtract(fileName string) bool {
	return hasExt(fileName, ".html", ".htm")
}

func (e *HTMLExtractor) Extract(r io.ReaderAt, size int64) ([]models.ContentBlock, error) {
	doc, err := goquery.NewDocumentFromReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, err
	}

	var blocks []models.ContentBlock
	doc.Find("body").Find(htmlBlockSelector).Each(func(_ int, s *goquery.Selection) {
		node := goquery.NodeName(s)
		if node == "table" {
			if s.ParentsFiltered("table").Length() > 0 {
				return
			}
			if rows := tableRows(s); len(rows) > 0 {
				blocks = append(blocks, models.Table(rows))
			}
			return
		}

		if s.ParentsFiltered("table").Length() > 0 {
			return
		}
		if node == "p" && s.ParentsFiltered("li").Length() > 0 {
			return
		}

		text := collapseSpace(s.Text())
		if text != "" {
			blocks = append(blocks, models.Paragraph(text))
		}
	})

	return blocks, nil
}

func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, collapseSpace(cell.Text()))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	return rows
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
