package model

import (
	"encoding/json"
	"time"
)

// SessionStatus tracks a review session through its single transaction.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
)

// ReviewSession is one submitted batch of corrections. TargetVersionID is
// the version that was latest when the session committed.
type ReviewSession struct {
	ID              string        `json:"reviewSessionId"`
	DocumentID      string        `json:"documentId"`
	TargetVersionID string        `json:"targetVersionId"`
	Reviewer        string        `json:"reviewer"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// ReviewedField is an append-only audit row, one per key whose correction
// changed within a session.
type ReviewedField struct {
	ID                string    `json:"id"`
	ReviewID          string    `json:"reviewSessionId"`
	DocumentID        string    `json:"documentId"`
	TargetVersionID   string    `json:"targetVersionId"`
	Key               string    `json:"attributeKey"`
	OriginalValue     string    `json:"originalValue"`
	OldCorrectedValue string    `json:"oldCorrectedValue"`
	NewCorrectedValue string    `json:"newCorrectedValue"`
	ReviewedBy        string    `json:"reviewedBy"`
	ReviewedAt        time.Time `json:"reviewedAt"`
}

// PostbackLog records one downstream notification attempt for a committed
// review.
type PostbackLog struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"documentId"`
	VersionID    string          `json:"versionId"`
	ReviewID     string          `json:"reviewSessionId,omitempty"`
	Target       string          `json:"target"`
	Endpoint     string          `json:"endpoint,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	StatusCode   *int            `json:"statusCode,omitempty"`
	ResponseBody string          `json:"responseBody,omitempty"`
	Success      bool            `json:"success"`
	Skipped      bool            `json:"skipped"`
	Attempts     int             `json:"attempts"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
