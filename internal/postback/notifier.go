// Package postback delivers committed reviews to downstream systems. Delivery
// runs after the review transaction commits and its outcome never reaches
// the reviewer.
package postback

import (
	"context"
	"fmt"
	"time"
)

// Attribute is one submitted correction as sent downstream.
type Attribute struct {
	ID             string `json:"id"`
	RowID          string `json:"rowId"`
	CorrectedValue string `json:"correctedValue"`
}

// Event describes a committed review.
type Event struct {
	DocumentID      string      `json:"documentId"`
	VersionID       string      `json:"versionId"`
	VersionNumber   int         `json:"versionNumber"`
	ReviewSessionID string      `json:"reviewSessionId"`
	ReviewedBy      string      `json:"reviewedBy"`
	Status          string      `json:"status"`
	Attributes      []Attribute `json:"attributes"`
	UpdatedKeys     []string    `json:"updatedKeys"`
	Timestamp       time.Time   `json:"timestamp"`
}

// Corrections returns the submitted corrections keyed by attribute key.
func (e Event) Corrections() map[string]string {
	out := make(map[string]string, len(e.Attributes))
	for _, a := range e.Attributes {
		out[a.ID] = a.CorrectedValue
	}
	return out
}

// Result is what a notifier observed for one delivery.
type Result struct {
	Endpoint     string
	Payload      []byte
	StatusCode   int
	ResponseBody string
	Skipped      bool
	Attempts     int
}

// NotifierError is a failed delivery. It is logged and persisted, never
// returned to a review caller.
type NotifierError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *NotifierError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("postback %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("postback %s: %v", e.Endpoint, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }

// Notifier delivers a review event to one target. Notify may return a
// non-nil Result alongside an error.
type Notifier interface {
	Target() string
	Notify(ctx context.Context, ev Event) (*Result, error)
}
