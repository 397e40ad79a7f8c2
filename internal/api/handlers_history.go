// handlers_history.go - Review history handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/history"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryReader
}

// NewHistoryHandler creates a history handler. A nil reader answers 503.
func NewHistoryHandler(reader HistoryReader) HistoryHandler {
	return &HistoryHandlerImpl{history: reader}
}

// HandleRecentReviews returns the most recent recorded reviews
func (h *HistoryHandlerImpl) HandleRecentReviews(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("review history is disabled")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 500 {
		limit = history.DefaultRecentLimit
	}

	reviews, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	if reviews == nil {
		reviews = []history.ReviewSummary{}
	}

	return c.JSON(http.StatusOK, reviews)
}

// HandleSectionStats returns per-section score statistics
func (h *HistoryHandlerImpl) HandleSectionStats(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("review history is disabled")
	}

	stats, err := h.history.SectionStats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to query section stats", err)
	}
	if stats == nil {
		stats = []history.SectionStat{}
	}

	return c.JSON(http.StatusOK, stats)
}
