package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Upload lifecycle. A file can be reviewed more than once; Status tracks the
// latest review started for it.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusReviewing = "reviewing"
	FileStatusReviewed  = "reviewed"
	FileStatusError     = "error"
)

// FileInfo describes an uploaded specification document.
type FileInfo struct {
	ID         string    `json:"id" msgpack:"id"`
	Name       string    `json:"name" msgpack:"name"`
	Size       int64     `json:"size" msgpack:"size"`
	SHA256     string    `json:"sha256,omitempty" msgpack:"sha256,omitempty"`
	UploadedAt time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status     string    `json:"status" msgpack:"status"`
}

// Ext returns the lower-cased extension of the original file name.
func (f FileInfo) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}
