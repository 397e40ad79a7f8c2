package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// APIError is the JSON body of every failed API call. Handlers return it as
// an error and ErrorHandler writes it.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ShowErrorDetails includes the underlying error text in unexpected 500
// responses. cmd/server turns it off unless LogLevel is "debug".
var ShowErrorDetails = true

func newAPIError(status int, code, message string, cause error) *APIError {
	err := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func NewBadRequestError(message string, cause error) *APIError {
	return newAPIError(http.StatusBadRequest, "BAD_REQUEST", message, cause)
}

// NewValidationError reports a missing or malformed request field.
func NewValidationError(field string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR", "validation failed for field: "+field, nil)
}

// NewNotFoundError names the kind of resource ("file", "review") and its ID.
func NewNotFoundError(resource string, id string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found: %s", resource, id), nil)
}

func NewForbiddenError(message string) *APIError {
	return newAPIError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func NewGoneError(message string) *APIError {
	return newAPIError(http.StatusGone, "GONE", message, nil)
}

// NewConflictError is used when a review exists but is not finished yet.
func NewConflictError(message string) *APIError {
	return newAPIError(http.StatusConflict, "CONFLICT", message, nil)
}

func NewPayloadTooLargeError(cause error) *APIError {
	return newAPIError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the maximum upload size", cause)
}

func NewUnsupportedTypeError(cause error) *APIError {
	return newAPIError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", "unsupported file type", cause)
}

func NewInternalError(message string, cause error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", message, cause)
}

// NewServiceUnavailableError covers optional features that are switched off.
func NewServiceUnavailableError(message string) *APIError {
	return newAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}

// domainError maps the sentinel errors of storage, extract and report onto
// HTTP errors. fallback describes anything unrecognised as a 500.
func domainError(err error, fallback string) *APIError {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return newAPIError(http.StatusNotFound, "NOT_FOUND", "file not found", err)
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, extract.ErrNoExtractor):
		return NewUnsupportedTypeError(err)
	case errors.Is(err, storage.ErrFileTooLarge):
		return NewPayloadTooLargeError(err)
	case errors.Is(err, storage.ErrEmptyFile):
		return NewBadRequestError("file is empty", err)
	case errors.Is(err, extract.ErrMalformed), errors.Is(err, extract.ErrNoText):
		return NewBadRequestError("document could not be read", err)
	case errors.Is(err, report.ErrLinkExpired):
		return NewGoneError("share link expired")
	case errors.Is(err, report.ErrInvalidSignature):
		return NewForbiddenError("invalid share link")
	default:
		return NewInternalError(fallback, err)
	}
}

// ErrorHandler is installed as echo's HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = newAPIError(httpErr.Code, "HTTP_ERROR", fmt.Sprintf("%v", httpErr.Message), nil)
	default:
		apiErr = newAPIError(http.StatusInternalServerError, "UNKNOWN_ERROR", "An unexpected error occurred", nil)
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	c.JSON(apiErr.Status, apiErr)
}
