package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl reports whether the server can accept reviews
type HealthHandlerImpl struct {
	reviews ReviewManager
	history bool
	info    map[string]string
}

// NewHealthHandler creates a health handler. reviews may be nil in tests.
func NewHealthHandler(deps *Dependencies) HealthHandler {
	return &HealthHandlerImpl{
		reviews: deps.Reviews,
		history: deps.History != nil,
		info: map[string]string{
			"version":  deps.Version,
			"provider": deps.Provider,
			"model":    deps.Model,
		},
	}
}

// HandleHealth always answers 200; "degraded" means uploads work but a
// review would fail section matching until a template or rules are loaded.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{"history": h.history}
	for k, v := range h.info {
		body[k] = v
	}

	headings := 0
	if h.reviews != nil {
		headings = len(h.reviews.Headings())
	}
	body["templateHeadings"] = headings

	if headings == 0 {
		body["status"] = "degraded"
	} else {
		body["status"] = "ok"
	}
	return c.JSON(http.StatusOK, body)
}
