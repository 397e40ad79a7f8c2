package report

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/techspec-reviewer/backend/internal/models"
)

func intPtr(n int) *int { return &n }

func sampleResult() *models.ReviewResult {
	return &models.ReviewResult{
		ReviewID: "rev-1",
		File:     models.FileInfo{ID: "file-1", Name: "gateway.docx"},
		Info: models.DocumentInfo{
			Title:   "Payment Gateway Design",
			Version: "1.2",
			Authors: []string{"Alice", "Bob"},
		},
		Structure: models.DocumentStructure{
			OverallScore:   intPtr(7),
			OverallComment: "Solid design, thin on security.",
			Sections: []models.SectionContent{
				{
					Header:        "Introduction",
					Status:        models.SectionPresent,
					AIScore:       intPtr(4),
					AIComment:     "Clear – well scoped.",
					AISuggestions: "Add a diagram.",
					Blocks: []models.ContentBlock{
						models.Paragraph("We build a gateway."),
						models.Table([][]string{{"Key", "Value"}, {"tps", "1|000"}}),
					},
				},
				{Header: "Security", Status: models.SectionMissing, Mandatory: true, Position: -1},
			},
		},
		Annotations: []models.Annotation{
			{Position: -1, Comment: "Solid design.", Severity: models.SeverityInfo, Category: "summary"},
			{Position: -1, Section: "Security", Comment: "Mandatory section Security is missing.", Severity: models.SeverityError, Category: "mandatory"},
		},
		Provider:  "mock",
		ModelID:   "mock-scorer",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatPDF, "PDF": FormatPDF, "markdown": FormatMarkdown, "md": FormatMarkdown, "json": FormatJSON, "msgpack": FormatMsgpack}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestFormat_FileName(t *testing.T) {
	assert.Equal(t, "gateway_review.pdf", FormatPDF.FileName("gateway.docx"))
	assert.Equal(t, "review_review.md", FormatMarkdown.FileName(""))
	assert.Equal(t, "application/x-msgpack", FormatMsgpack.ContentType())
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatPDF, sampleResult()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatMarkdown, sampleResult()))
	md := buf.String()

	assert.True(t, strings.HasPrefix(md, "# TechSpec Review: gateway.docx\n"))
	assert.Contains(t, md, "- Authors: Alice, Bob\n")
	assert.Contains(t, md, "## Overall score: 7/10\n")
	assert.Contains(t, md, "**Status:** Present  \n**Score:** 4/5")
	assert.Contains(t, md, "**Suggestions:** Add a diagram.")
	assert.Contains(t, md, "| Key | Value |\n| --- | --- |\n| tps | 1\\|000 |\n")
	assert.Contains(t, md, "**Status:** Missing (mandatory)  \n**Score:** n/a")
	assert.Contains(t, md, "- **error/mandatory** Security: Mandatory section Security is missing.")
}

func TestRenderJSONAndMsgpack(t *testing.T) {
	r := sampleResult()

	var jsonBuf bytes.Buffer
	require.NoError(t, Render(&jsonBuf, FormatJSON, r))
	var decoded models.ReviewResult
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, "rev-1", decoded.ReviewID)

	var mpBuf bytes.Buffer
	require.NoError(t, Render(&mpBuf, FormatMsgpack, r))
	var fromMsgpack models.ReviewResult
	require.NoError(t, msgpack.Unmarshal(mpBuf.Bytes(), &fromMsgpack))
	assert.Equal(t, 7, *fromMsgpack.Structure.OverallScore)
	assert.Len(t, fromMsgpack.Structure.Sections, 2)
}

func TestShareService(t *testing.T) {
	svc := NewShareService("s3cret", "http://localhost:8501", time.Hour)
	now := time.Unix(1_700_000_000, 0)

	link, expiresAt := svc.Generate("rev-1", now)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/api/share/rev-1", u.Path)

	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	sig := u.Query().Get("sig")

	assert.NoError(t, svc.Validate("rev-1", exp, sig, now))
	assert.ErrorIs(t, svc.Validate("rev-2", exp, sig, now), ErrInvalidSignature)
	assert.ErrorIs(t, svc.Validate("rev-1", exp+1, sig, now), ErrInvalidSignature)
	assert.ErrorIs(t, svc.Validate("rev-1", exp, sig, now.Add(2*time.Hour)), ErrLinkExpired)

	other := NewShareService("other", "", time.Hour)
	assert.ErrorIs(t, other.Validate("rev-1", exp, sig, now), ErrInvalidSignature)
}
