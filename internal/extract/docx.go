package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

const defaultParagraphStyle = "Normal"

// DOCXParagraph is a body-level paragraph with its resolved style name.
type DOCXParagraph struct {
	Style string
	Text  string
}

// DOCXDocument is the parsed body of a .docx file.
type DOCXDocument struct {
	Paragraphs []DOCXParagraph
	Blocks     []models.ContentBlock
}

// DOCXExtractor reads Office Open XML word documents.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor { return &DOCXExtractor{} }

func (e *DOCXExtractor) Name() string { return "docx" }

func (e *DOCXExtractor) CanExtract(fileName string) bool {
	return hasExt(fileName, ".docx")
}

func (e *DOCXExtractor) Extract(r io.ReaderAt, size int64) ([]models.ContentBlock, error) {
	doc, err := ParseDOCX(r, size)
	if err != nil {
		return nil, err
	}
	return doc.Blocks, nil
}

// ParseDOCX walks word/document.xml and returns paragraphs and tables in
// body order. Empty paragraphs are kept in Paragraphs but not in Blocks.
func ParseDOCX(r io.ReaderAt, size int64) (*DOCXDocument, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var body, styles *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			body = f
		case "word/styles.xml":
			styles = f
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrMalformed)
	}

	styleNames := map[string]string{}
	if styles != nil {
		if styleNames, err = readStyles(styles); err != nil {
			return nil, err
		}
	}

	rc, err := body.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return parseBody(xml.NewDecoder(rc), styleNames)
}

func parseBody(dec *xml.Decoder, styleNames map[string]string) (*DOCXDocument, error) {
	doc := &DOCXDocument{}
	inBody := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "body"
				continue
			}
			switch t.Name.Local {
			case "p":
				styleID, text, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				style := resolveStyle(styleID, styleNames)
				doc.Paragraphs = append(doc.Paragraphs, DOCXParagraph{Style: style, Text: text})
				if strings.TrimSpace(text) != "" {
					doc.Blocks = append(doc.Blocks, models.Paragraph(text))
				}
			case "tbl":
				rows, err := readTable(dec)
				if err != nil {
					return nil, err
				}
				doc.Blocks = append(doc.Blocks, models.Table(rows))
			default:
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
				}
			}
		case xml.EndElement:
			if inBody && t.Name.Local == "body" {
				return doc, nil
			}
		}
	}
	return doc, nil
}

// readParagraph consumes a w:p element and returns its style id and text.
func readParagraph(dec *xml.Decoder) (string, string, error) {
	var (
		styleID string
		sb      strings.Builder
		inText  bool
		depth   = 1
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "pStyle":
				styleID = attr(t, "val")
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return styleID, sb.String(), nil
}

// readTable consumes a w:tbl element. Cell text joins the cell's paragraphs
// with newlines and is trimmed; tables nested in a cell are dropped.
func readTable(dec *xml.Decoder) ([][]string, error) {
	var (
		rows  [][]string
		row   []string
		cell  []string
		depth = 1
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tr":
				row = nil
				depth++
			case "tc":
				cell = nil
				depth++
			case "tbl":
				// Nested tables are not part of the outer cell's text.
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
				}
			case "p":
				_, text, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				cell = append(cell, text)
			default:
				depth++
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tc":
				row = append(row, strings.TrimSpace(strings.Join(cell, "\n")))
			case "tr":
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

type docxStyles struct {
	Styles []struct {
		ID   string `xml:"styleId,attr"`
		Name struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

func readStyles(f *zip.File) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var st docxStyles
	if err := xml.NewDecoder(rc).Decode(&st); err != nil {
		return nil, fmt.Errorf("%w: styles: %v", ErrMalformed, err)
	}

	names := make(map[string]string, len(st.Styles))
	for _, s := range st.Styles {
		if s.ID != "" && s.Name.Val != "" {
			names[s.ID] = s.Name.Val
		}
	}
	return names, nil
}

// resolveStyle maps a style id to its UI name. Built-in names are stored
// lowercase ("heading 1") and shown capitalized.
func resolveStyle(id string, names map[string]string) string {
	if id == "" {
		return defaultParagraphStyle
	}
	name, ok := names[id]
	if !ok {
		name = id
	}
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "heading"):
		rest := strings.TrimSpace(name[len("heading"):])
		if rest == "" {
			return "Heading"
		}
		return "Heading " + rest
	case lower == "title":
		return "Title"
	case lower == "normal":
		return defaultParagraphStyle
	}
	return name
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
