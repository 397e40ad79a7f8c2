// handlers_review.go - Review session operation handlers
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// File statuses written back to storage as reviews progress
const (
	FileStatusReviewing = models.FileStatusReviewing
	FileStatusReviewed  = models.FileStatusReviewed
	FileStatusError     = models.FileStatusError
)

// progressPollInterval is how often the SSE stream re-reads session state
var progressPollInterval = 100 * time.Millisecond

// ReviewHandlerImpl implements the ReviewHandler interface
type ReviewHandlerImpl struct {
	store   storage.Store
	reviews ReviewManager
	share   *report.ShareService
}

// NewReviewHandler creates a new review handler instance. share may be nil,
// which disables share links.
func NewReviewHandler(store storage.Store, reviews ReviewManager, share *report.ShareService) ReviewHandler {
	return &ReviewHandlerImpl{
		store:   store,
		reviews: reviews,
		share:   share,
	}
}

// HandleStartReview starts a review of an uploaded file
func (h *ReviewHandlerImpl) HandleStartReview(c echo.Context) error {
	var req startReviewRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewInternalError("failed to get file path", err)
	}

	// Marked before starting so a fast review's final status is not overwritten
	previous := info.Status
	if err := h.store.SetStatus(info.ID, FileStatusReviewing); err != nil {
		fmt.Printf("[API] WARNING: failed to mark %s reviewing: %v\n", info.ID, err)
	}

	sess, err := h.reviews.StartReview(*info, path)
	if err != nil {
		h.store.SetStatus(info.ID, previous)
		return NewInternalError("failed to start review", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleReviewStatus returns the current status of a review session
func (h *ReviewHandlerImpl) HandleReviewStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	sess, ok := h.reviews.GetSession(id)
	if !ok {
		return NewNotFoundError("review", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.reviews.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ReviewHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if ok := h.reviews.TouchSession(id); !ok {
		return NewNotFoundError("review", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleReviewProgressStream streams review progress via SSE
func (h *ReviewHandlerImpl) HandleReviewProgressStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.reviews.GetSession(id)
	if !ok {
		sendSSEError(c, "review not found")
		return nil
	}

	sendSSEData(c, sess)
	if sess.Finished() {
		return nil
	}

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	lastStage := sess.Stage
	for {
		select {
		case <-ticker.C:
			sess, ok := h.reviews.GetSession(id)
			if !ok {
				sendSSEError(c, "review not found")
				return nil
			}

			// Only send when something changed
			if sess.Stage != lastStage || sess.Finished() {
				sendSSEData(c, sess)
				lastStage = sess.Stage
			}

			if sess.Finished() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleReviewResult returns the full review result
func (h *ReviewHandlerImpl) HandleReviewResult(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleReviewInfo returns the extracted document metadata
func (h *ReviewHandlerImpl) HandleReviewInfo(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result.Info)
}

// HandleReviewSections returns the document broken into template sections
func (h *ReviewHandlerImpl) HandleReviewSections(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result.Structure)
}

// HandleReviewRequest returns the prompt and the provider request that was sent
func (h *ReviewHandlerImpl) HandleReviewRequest(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider": result.Provider,
		"modelId":  result.ModelID,
		"prompt":   result.Prompt,
		"request":  result.Request,
	})
}

// HandleReviewAnnotations returns the annotations, optionally filtered by severity
func (h *ReviewHandlerImpl) HandleReviewAnnotations(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}

	severity := c.QueryParam("severity")
	if severity == "" {
		return c.JSON(http.StatusOK, result.Annotations)
	}

	filtered := make([]models.Annotation, 0, len(result.Annotations))
	for _, a := range result.Annotations {
		if string(a.Severity) == severity {
			filtered = append(filtered, a)
		}
	}
	return c.JSON(http.StatusOK, filtered)
}

// HandleDownload returns the annotated report in the requested format
func (h *ReviewHandlerImpl) HandleDownload(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return sendReport(c, result)
}

// HandleShareLink creates a signed, expiring download link
func (h *ReviewHandlerImpl) HandleShareLink(c echo.Context) error {
	if h.share == nil {
		return NewServiceUnavailableError("share links are disabled")
	}

	result, err := h.result(c)
	if err != nil {
		return err
	}

	url, expiresAt := h.share.Generate(result.ReviewID, time.Now())
	return c.JSON(http.StatusOK, shareLinkResponse{
		URL:       url,
		ExpiresAt: expiresAt,
	})
}

// HandleSharedDownload serves a report through a signed share link
func (h *ReviewHandlerImpl) HandleSharedDownload(c echo.Context) error {
	if h.share == nil {
		return NewServiceUnavailableError("share links are disabled")
	}

	id := c.Param("id")
	exp, err := strconv.ParseInt(c.QueryParam("exp"), 10, 64)
	if err != nil {
		return NewBadRequestError("invalid exp", err)
	}

	if err := h.share.Validate(id, exp, c.QueryParam("sig"), time.Now()); err != nil {
		return domainError(err, "failed to validate share link")
	}

	result, ok := h.reviews.GetResult(id)
	if !ok {
		return NewNotFoundError("review", id)
	}
	return sendReport(c, result)
}

// Request/Response types

type startReviewRequest struct {
	FileID string `json:"fileId"`
}

type shareLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Helper methods

// result looks up a finished review, distinguishing unknown from in-progress
func (h *ReviewHandlerImpl) result(c echo.Context) (*models.ReviewResult, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	sess, ok := h.reviews.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("review", id)
	}
	if sess.Status == models.SessionStatusError {
		msg := "review failed"
		if n := len(sess.Errors); n > 0 {
			msg = sess.Errors[n-1].Reason
		}
		return nil, NewConflictError(msg)
	}

	result, ok := h.reviews.GetResult(id)
	if !ok {
		return nil, NewConflictError(fmt.Sprintf("review %s is still %s", id, sess.Stage))
	}

	h.reviews.TouchSession(id)
	return result, nil
}

func sendReport(c echo.Context, result *models.ReviewResult) error {
	format, err := report.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("invalid format", err)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, format, result); err != nil {
		return NewInternalError("failed to render report", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", format.FileName(result.File.Name)))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

// SyncFileStatus marks stored files reviewed or failed as their reviews
// finish. It runs until ctx is cancelled.
func SyncFileStatus(ctx context.Context, store storage.Store, reviews ReviewManager) {
	events, unsubscribe := reviews.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			var status string
			switch e.Status {
			case models.SessionStatusComplete:
				status = FileStatusReviewed
			case models.SessionStatusError:
				status = FileStatusError
			default:
				continue
			}
			if err := store.SetStatus(e.FileID, status); err != nil {
				fmt.Printf("[API] WARNING: failed to set status of %s: %v\n", e.FileID, err)
			}
		}
	}
}
