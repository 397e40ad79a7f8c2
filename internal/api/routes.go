// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store        storage.Store
	Reviews      ReviewManager
	History      HistoryReader
	Share        *report.ShareService
	Limits       UploadLimits
	TemplatePath string
	RulesPath    string
	Version      string
	Provider     string
	Model        string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Review    ReviewHandler
	Template  TemplateHandler
	Rules     RulesHandler
	History   HistoryHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps),
		Upload:    NewUploadHandler(deps.Store, deps.Limits),
		Review:    NewReviewHandler(deps.Store, deps.Reviews, deps.Share),
		Template:  NewTemplateHandler(deps.Reviews, deps.TemplatePath, deps.Limits.MaxFileSize),
		Rules:     NewRulesHandler(deps.Reviews, deps.RulesPath),
		History:   NewHistoryHandler(deps.History),
		WebSocket: NewWebSocketHandler(deps.Store, deps.Reviews, deps.Limits),
	}
}

// RouteOptions toggles optional routes
type RouteOptions struct {
	AllowFileDeletion bool
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, opts RouteOptions) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// WebSocket endpoint
	apiGroup.GET("/ws/reviews", handlers.WebSocket.HandleWebSocket)

	// File management
	apiGroup.POST("/files/upload", handlers.Upload.HandleUploadFile)
	apiGroup.POST("/files/upload/json", handlers.Upload.HandleUploadJSON)
	apiGroup.GET("/files/recent", handlers.Upload.HandleGetRecentFiles)
	apiGroup.GET("/files/:id", handlers.Upload.HandleGetFile)
	apiGroup.PUT("/files/:id", handlers.Upload.HandleRenameFile)

	// Conditional delete based on config
	if opts.AllowFileDeletion {
		apiGroup.DELETE("/files/:id", handlers.Upload.HandleDeleteFile)
	}

	// Review sessions
	apiGroup.POST("/reviews", handlers.Review.HandleStartReview)
	apiGroup.GET("/reviews/:id/status", handlers.Review.HandleReviewStatus)
	apiGroup.GET("/reviews/:id/progress", handlers.Review.HandleReviewProgressStream)
	apiGroup.POST("/reviews/:id/keepalive", handlers.Review.HandleSessionKeepAlive)
	apiGroup.GET("/reviews/:id/result", handlers.Review.HandleReviewResult)
	apiGroup.GET("/reviews/:id/info", handlers.Review.HandleReviewInfo)
	apiGroup.GET("/reviews/:id/sections", handlers.Review.HandleReviewSections)
	apiGroup.GET("/reviews/:id/request", handlers.Review.HandleReviewRequest)
	apiGroup.GET("/reviews/:id/annotations", handlers.Review.HandleReviewAnnotations)
	apiGroup.GET("/reviews/:id/download", handlers.Review.HandleDownload)
	apiGroup.POST("/reviews/:id/share", handlers.Review.HandleShareLink)
	apiGroup.GET("/share/:id", handlers.Review.HandleSharedDownload)

	// Template and rules
	apiGroup.GET("/template/headings", handlers.Template.HandleGetHeadings)
	apiGroup.POST("/template", handlers.Template.HandleUploadTemplate)
	apiGroup.GET("/rules", handlers.Rules.HandleGetRules)
	apiGroup.PUT("/rules", handlers.Rules.HandleUpdateRules)

	// History
	apiGroup.GET("/history/recent", handlers.History.HandleRecentReviews)
	apiGroup.GET("/history/sections", handlers.History.HandleSectionStats)
}

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	RequestLogging    bool
	Timeout           time.Duration
	BodyLimit         string
	EnableCompression bool
	CompressionLevel  int
	EnableCORS        bool
	AllowOrigins      []string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: opts.Timeout,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/progress") ||
					strings.HasPrefix(path, "/api/ws/") ||
					strings.Contains(path, "/upload") ||
					c.Request().Header.Get("Accept") == "text/event-stream"
			},
			ErrorMessage: "Request timeout",
		}))
	}

	// Compression middleware
	if opts.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := opts.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

// SplitOrigins parses a comma separated origin list
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
