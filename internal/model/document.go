package model

import "time"

// DocumentStatus is the review state shown in listing views.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "Pending"
	DocumentStatusInReview  DocumentStatus = "In Review"
	DocumentStatusReviewed  DocumentStatus = "Reviewed"
	DocumentStatusApproved  DocumentStatus = "Approved"
	DocumentStatusRejected  DocumentStatus = "Rejected"
	DefaultReviewedStatus                  = DocumentStatusReviewed
)

// ValidDocumentStatus reports whether s is a known status.
func ValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusInReview, DocumentStatusReviewed,
		DocumentStatusApproved, DocumentStatusRejected:
		return true
	}
	return false
}

// Document is a contract under review. CurrentVersionID/Number point at the
// latest version; AttributeCount and OverallConfidence are denormalized for
// listing views.
type Document struct {
	ID                   string         `json:"id"`
	Title                string         `json:"title"`
	Status               DocumentStatus `json:"status"`
	CurrentVersionID     string         `json:"currentVersionId,omitempty"`
	CurrentVersionNumber int            `json:"currentVersionNumber,omitempty"`
	StorageRef           string         `json:"storageRef,omitempty"`
	AttributeCount       int            `json:"attributeCount"`
	OverallConfidence    float64        `json:"overallConfidence"`
	ReviewedBy           string         `json:"reviewedBy,omitempty"`
	UploadedAt           time.Time      `json:"uploadDate"`
}

// Version is an immutable snapshot of a document. Only IsLatest moves, and
// only when the ingestion pipeline adds a newer version.
type Version struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	VersionNumber int       `json:"versionNumber"`
	IsLatest      bool      `json:"isLatest"`
	Status        string    `json:"status,omitempty"`
	StorageRef    string    `json:"storageRef,omitempty"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LatestOf returns the version flagged latest, or nil when none is.
func LatestOf(versions []Version) *Version {
	for i := range versions {
		if versions[i].IsLatest {
			return &versions[i]
		}
	}
	return nil
}
