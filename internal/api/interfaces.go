// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/history"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/review"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadJSON(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ReviewHandler handles review session operations
type ReviewHandler interface {
	HandleStartReview(c echo.Context) error
	HandleReviewStatus(c echo.Context) error
	HandleReviewProgressStream(c echo.Context) error
	HandleReviewResult(c echo.Context) error
	HandleReviewInfo(c echo.Context) error
	HandleReviewSections(c echo.Context) error
	HandleReviewRequest(c echo.Context) error
	HandleReviewAnnotations(c echo.Context) error
	HandleDownload(c echo.Context) error
	HandleShareLink(c echo.Context) error
	HandleSharedDownload(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// TemplateHandler handles the review template
type TemplateHandler interface {
	HandleGetHeadings(c echo.Context) error
	HandleUploadTemplate(c echo.Context) error
}

// RulesHandler handles the per-section review rules
type RulesHandler interface {
	HandleGetRules(c echo.Context) error
	HandleUpdateRules(c echo.Context) error
}

// HistoryHandler handles review history queries
type HistoryHandler interface {
	HandleRecentReviews(c echo.Context) error
	HandleSectionStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ReviewManager defines the interface for review session management
// This allows mocking in tests
type ReviewManager interface {
	StartReview(file models.FileInfo, path string) (*models.ReviewSession, error)
	GetSession(id string) (*models.ReviewSession, bool)
	GetResult(id string) (*models.ReviewResult, bool)
	TouchSession(id string) bool
	Subscribe() (<-chan review.Event, func())
	SetTemplate(headings []models.TemplateHeading, paragraphs []string)
	Headings() []models.TemplateHeading
	SetRules(rules *models.ReviewRules)
	Rules() *models.ReviewRules
}

// HistoryReader is the read side of the review history store
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.ReviewSummary, error)
	SectionStats(ctx context.Context) ([]history.SectionStat, error)
}

var (
	_ ReviewManager = (*review.Manager)(nil)
	_ HistoryReader = (*history.Store)(nil)
)
