// handlers_upload.go - File upload operation handlers
package api

import (
	"encoding/base64"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// UploadLimits bounds what the upload handlers accept
type UploadLimits struct {
	AllowedTypes []string
	MaxFileSize  int64
}

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store  storage.Store
	limits UploadLimits
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, limits UploadLimits) UploadHandler {
	return &UploadHandlerImpl{
		store:  store,
		limits: limits,
	}
}

// HandleUploadFile accepts a document as multipart/form-data
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	name := filepath.Base(file.Filename)
	if err := storage.ValidateUpload(name, file.Size, h.limits.AllowedTypes, h.limits.MaxFileSize); err != nil {
		return domainError(err, "invalid upload")
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(name, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadJSON accepts a document as base64 JSON
func (h *UploadHandlerImpl) HandleUploadJSON(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	name := filepath.Base(req.Name)
	if err := storage.ValidateUpload(name, int64(len(decoded)), h.limits.AllowedTypes, h.limits.MaxFileSize); err != nil {
		return domainError(err, "invalid upload")
	}

	info, err := h.store.SaveBytes(name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns a list of recently uploaded documents
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes an uploaded document
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.Name == "" {
		return NewValidationError("name")
	}

	current, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	// The extension picks the extractor, so it must survive a rename
	renamed := models.FileInfo{Name: filepath.Base(req.Name)}
	if renamed.Ext() != current.Ext() {
		return NewBadRequestError("rename must keep the file extension "+current.Ext(), nil)
	}

	info, err := h.store.Rename(id, renamed.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
