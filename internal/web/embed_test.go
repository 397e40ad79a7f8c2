package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	e.GET("/api/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		contains   string
		cache      string
	}{
		{"root serves index", "/", http.StatusOK, "TechSpec Reviewer", "no-cache"},
		{"spa fallback", "/reviews/abc", http.StatusOK, "TechSpec Reviewer", "no-cache"},
		{"script asset revalidates", "/assets/app.js", http.StatusOK, "EventSource", "no-cache"},
		{"style asset revalidates", "/assets/app.css", http.StatusOK, "font-family", "no-cache"},
		{"api route wins", "/api/health", http.StatusOK, "ok", ""},
		{"unknown api path", "/api/nope", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
			assert.Equal(t, tt.cache, rec.Header().Get("Cache-Control"))
		})
	}
}
