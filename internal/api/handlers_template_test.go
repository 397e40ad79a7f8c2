package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspec-reviewer/backend/internal/history"
	"github.com/techspec-reviewer/backend/internal/models"
)

// minimalDOCX zips a word document whose body holds the given (style, text) paragraphs
func minimalDOCX(t *testing.T, paras ...[2]string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paras {
		body.WriteString(`<w:p>`)
		if p[0] != "" {
			body.WriteString(`<w:pPr><w:pStyle w:val="` + p[0] + `"/></w:pPr>`)
		}
		body.WriteString(`<w:r><w:t>` + p[1] + `</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestTemplateHandler_HandleGetHeadings(t *testing.T) {
	reviews := newFakeReviews()
	handler := NewTemplateHandler(reviews, "", 0)

	c, rec := reviewContext(http.MethodGet, "/api/template/headings", "")
	require.NoError(t, handler.HandleGetHeadings(c))
	assert.JSONEq(t, `[]`, rec.Body.String())

	reviews.headings = []models.TemplateHeading{{Style: "Heading 1", Text: "Overview"}}
	c, rec = reviewContext(http.MethodGet, "/api/template/headings", "")
	require.NoError(t, handler.HandleGetHeadings(c))
	assert.JSONEq(t, `[{"style":"Heading 1","text":"Overview"}]`, rec.Body.String())
}

func TestTemplateHandler_HandleUploadTemplate(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "template.docx")
	reviews := newFakeReviews()
	handler := NewTemplateHandler(reviews, savePath, 0)

	data := minimalDOCX(t,
		[2]string{"Heading1", "Overview"},
		[2]string{"", "Describe the system."},
		[2]string{"Heading2", "Interfaces"},
	)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(multipartRequest(t, "/api/template", "template.docx", data), rec)
	require.NoError(t, handler.HandleUploadTemplate(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, []models.TemplateHeading{
		{Style: "Heading 1", Text: "Overview"},
		{Style: "Heading 2", Text: "Interfaces"},
	}, reviews.headings)
	assert.Equal(t, []string{"Overview", "Describe the system.", "Interfaces"}, reviews.paras)

	saved, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, data, saved)
}

func TestTemplateHandler_HandleUploadTemplate_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		data       func(t *testing.T) []byte
		wantStatus int
		errCode    string
	}{
		{
			name:       "not a docx",
			fileName:   "template.pdf",
			data:       func(*testing.T) []byte { return []byte("%PDF-1.4") },
			wantStatus: http.StatusUnsupportedMediaType,
			errCode:    "UNSUPPORTED_TYPE",
		},
		{
			name:       "corrupt docx",
			fileName:   "template.docx",
			data:       func(*testing.T) []byte { return []byte("not a zip") },
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
		{
			name:     "no headings",
			fileName: "template.docx",
			data: func(t *testing.T) []byte {
				return minimalDOCX(t, [2]string{"", "Just a paragraph."})
			},
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews := newFakeReviews()
			handler := NewTemplateHandler(reviews, "", 0)

			e := echo.New()
			c := e.NewContext(multipartRequest(t, "/api/template", tt.fileName, tt.data(t)), httptest.NewRecorder())
			assertAPIError(t, handler.HandleUploadTemplate(c), tt.wantStatus, tt.errCode)
			assert.Nil(t, reviews.headings)
		})
	}
}

func TestRulesHandler_HandleGetRules(t *testing.T) {
	reviews := newFakeReviews()
	handler := NewRulesHandler(reviews, "")

	c, rec := reviewContext(http.MethodGet, "/api/rules", "")
	require.NoError(t, handler.HandleGetRules(c))
	var got models.ReviewRules
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DefaultSectionRules, got.DefaultRules)

	reviews.rules = &models.ReviewRules{
		DefaultRules: "Be strict.",
		Sections:     []models.SectionRule{{Heading: "Security", Mandatory: true}},
	}
	c, rec = reviewContext(http.MethodGet, "/api/rules?format=yaml", "")
	require.NoError(t, handler.HandleGetRules(c))
	assert.Equal(t, "application/yaml", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "default_rules: Be strict.")
	assert.Contains(t, rec.Body.String(), "mandatory: true")
}

func TestRulesHandler_HandleUpdateRules(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
		wantHeading string
	}{
		{
			name:        "json",
			contentType: echo.MIMEApplicationJSON,
			body:        `{"defaultRules":"Score 1-5","sections":[{"heading":"Scope","mandatory":true}]}`,
			wantHeading: "Scope",
		},
		{
			name:        "yaml",
			contentType: "application/yaml",
			body:        "default_rules: Score 1-5\nsections:\n  - heading: Testing\n    mandatory: true\n",
			wantHeading: "Testing",
		},
		{
			name:        "invalid json",
			contentType: echo.MIMEApplicationJSON,
			body:        `{"sections":`,
			wantErr:     true,
		},
		{
			name:        "duplicate headings",
			contentType: echo.MIMEApplicationJSON,
			body:        `{"sections":[{"heading":"A"},{"heading":"A"}]}`,
			wantErr:     true,
		},
		{
			name:        "invalid yaml",
			contentType: "text/yaml",
			body:        "sections: [a, b",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			savePath := filepath.Join(t.TempDir(), "rules.yaml")
			reviews := newFakeReviews()
			handler := NewRulesHandler(reviews, savePath)

			e := echo.New()
			req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, tt.contentType)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.HandleUpdateRules(c)
			if tt.wantErr {
				assertAPIError(t, err, http.StatusBadRequest, "BAD_REQUEST")
				assert.Nil(t, reviews.rules)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, reviews.rules)
			assert.Equal(t, tt.wantHeading, reviews.rules.Sections[0].Heading)
			assert.True(t, reviews.rules.Sections[0].Mandatory)

			saved, err := os.ReadFile(savePath)
			require.NoError(t, err)
			assert.Contains(t, string(saved), "heading: "+tt.wantHeading)
		})
	}
}

type fakeHistory struct {
	recent []history.ReviewSummary
	stats  []history.SectionStat
	err    error
	limit  int
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]history.ReviewSummary, error) {
	f.limit = limit
	return f.recent, f.err
}

func (f *fakeHistory) SectionStats(ctx context.Context) ([]history.SectionStat, error) {
	return f.stats, f.err
}

func TestHistoryHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		handler := NewHistoryHandler(nil)
		c, _ := reviewContext(http.MethodGet, "/api/history/recent", "")
		assertAPIError(t, handler.HandleRecentReviews(c), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
		c, _ = reviewContext(http.MethodGet, "/api/history/sections", "")
		assertAPIError(t, handler.HandleSectionStats(c), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
	})

	t.Run("recent", func(t *testing.T) {
		fh := &fakeHistory{recent: []history.ReviewSummary{{ID: "rev-1", FileName: "a.txt"}}}
		handler := NewHistoryHandler(fh)

		c, rec := reviewContext(http.MethodGet, "/api/history/recent?limit=5", "")
		require.NoError(t, handler.HandleRecentReviews(c))
		assert.Equal(t, 5, fh.limit)
		assert.Contains(t, rec.Body.String(), "rev-1")

		c, _ = reviewContext(http.MethodGet, "/api/history/recent?limit=0", "")
		require.NoError(t, handler.HandleRecentReviews(c))
		assert.Equal(t, history.DefaultRecentLimit, fh.limit)
	})

	t.Run("empty stats are an array", func(t *testing.T) {
		handler := NewHistoryHandler(&fakeHistory{})
		c, rec := reviewContext(http.MethodGet, "/api/history/sections", "")
		require.NoError(t, handler.HandleSectionStats(c))
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("query error", func(t *testing.T) {
		handler := NewHistoryHandler(&fakeHistory{err: errors.New("db closed")})
		c, _ := reviewContext(http.MethodGet, "/api/history/sections", "")
		assertAPIError(t, handler.HandleSectionStats(c), http.StatusInternalServerError, "INTERNAL_ERROR")
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		reviews  ReviewManager
		history  HistoryReader
		status   string
		headings int
	}{
		{"no review manager", nil, nil, "degraded", 0},
		{"no headings", &fakeReviews{}, &fakeHistory{}, "degraded", 0},
		{"template loaded", &fakeReviews{headings: []models.TemplateHeading{{Style: "Heading 1", Text: "Overview"}}}, nil, "ok", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(&Dependencies{
				Reviews:  tt.reviews,
				History:  tt.history,
				Version:  "1.2.3",
				Provider: "mock",
				Model:    "mock-reviewer",
			})
			c, rec := reviewContext(http.MethodGet, "/api/health", "")
			require.NoError(t, handler.HandleHealth(c))
			assert.Equal(t, http.StatusOK, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, float64(tt.headings), body["templateHeadings"])
			assert.Equal(t, tt.history != nil, body["history"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Equal(t, "mock", body["provider"])
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", NewNotFoundError("file", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge, "HTTP_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := reviewContext(http.MethodGet, "/", "")
			ErrorHandler(tt.err, c)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}
