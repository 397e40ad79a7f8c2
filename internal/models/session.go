package models

// SessionStatus represents the status of a review session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusExtracting SessionStatus = "extracting"
	SessionStatusReviewing  SessionStatus = "reviewing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// ReviewSession represents one document review run.
type ReviewSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	FileName         string        `json:"fileName"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	Stage            string        `json:"stage"`
	Provider         string        `json:"provider,omitempty"`
	ModelID          string        `json:"modelId,omitempty"`
	SectionCount     int           `json:"sectionCount,omitempty"`
	BlockCount       int           `json:"blockCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	Errors           []ReviewError `json:"errors,omitempty"`
}

// ReviewError represents an error encountered during a review.
type ReviewError struct {
	Stage  string `json:"stage,omitempty" msgpack:"stage,omitempty"`
	Reason string `json:"reason" msgpack:"reason"`
}

// NewReviewSession creates a new ReviewSession in pending status.
func NewReviewSession(id, fileID, fileName string) *ReviewSession {
	return &ReviewSession{
		ID:       id,
		FileID:   fileID,
		FileName: fileName,
		Status:   SessionStatusPending,
		Stage:    "queued",
		Errors:   make([]ReviewError, 0),
	}
}

// Finished reports whether the session reached a terminal state.
func (s *ReviewSession) Finished() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}
