package store

import (
	"context"
	"time"

	"github.com/sells-group/contract-review/internal/model"
)

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Status model.DocumentStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// PostbackFilter specifies criteria for listing postback logs.
type PostbackFilter struct {
	DocumentID string    `json:"document_id,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// SessionCounts holds review session counts keyed by status.
type SessionCounts map[model.SessionStatus]int

// DocumentBundle is one ingested document with all of its versions and
// extracted fields.
type DocumentBundle struct {
	Document model.Document
	Versions []model.Version
	Fields   []model.ExtractedField
}

// Store defines the persistence interface for the review core.
type Store interface {
	// Documents and versions
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]model.Version, error)
	GetLatestVersion(ctx context.Context, documentID string) (*model.Version, error)
	GetVersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error)

	// Fields
	ListFields(ctx context.Context, versionID string) ([]model.ExtractedField, error)
	FieldHistory(ctx context.Context, documentID string, upTo int) ([]model.FieldSnapshot, error)

	// Review sessions and audit log
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetReviewSession(ctx context.Context, id string) (*model.ReviewSession, error)
	ListReviewedFields(ctx context.Context, documentID string) ([]model.ReviewedField, error)
	CountReviewSessions(ctx context.Context, since time.Time) (SessionCounts, error)

	// Postback logs
	InsertPostbackLog(ctx context.Context, log *model.PostbackLog) error
	ListPostbackLogs(ctx context.Context, filter PostbackFilter) ([]model.PostbackLog, error)

	// Ingestion
	ImportDocument(ctx context.Context, bundle DocumentBundle) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the write path of a review session. Every method runs inside the
// transaction opened by Store.InTx; nothing is visible to other readers
// until it commits.
type Tx interface {
	// LockDocument takes the per-document write lock.
	LockDocument(ctx context.Context, documentID string) error
	// LatestVersion resolves the version currently flagged latest.
	LatestVersion(ctx context.Context, documentID string) (*model.Version, error)
	CreateReviewSession(ctx context.Context, s *model.ReviewSession) error
	// LockField loads and locks the row for (versionID, key). It returns
	// nil, nil when the key does not exist in that version.
	LockField(ctx context.Context, versionID, key string) (*model.ExtractedField, error)
	SetCorrectedValue(ctx context.Context, rowID string, value *string) error
	InsertReviewedField(ctx context.Context, rf *model.ReviewedField) error
	CompleteReviewSession(ctx context.Context, sessionID string, at time.Time) error
	MarkDocumentReviewed(ctx context.Context, documentID string, status model.DocumentStatus, reviewer string) error
}

// summarize fills the denormalized listing stats of a bundle's document from
// its latest version.
func summarize(b DocumentBundle) model.Document {
	doc := b.Document
	latest := model.LatestOf(b.Versions)
	if latest == nil {
		return doc
	}
	doc.CurrentVersionID = latest.ID
	doc.CurrentVersionNumber = latest.VersionNumber
	if doc.StorageRef == "" {
		doc.StorageRef = latest.StorageRef
	}

	var count, scored int
	var total float64
	for _, f := range b.Fields {
		if f.VersionID != latest.ID {
			continue
		}
		count++
		if f.ConfidenceScore > 0 {
			total += f.ConfidenceScore
			scored++
		}
	}
	doc.AttributeCount = count
	if scored > 0 {
		doc.OverallConfidence = total / float64(scored)
	}
	if doc.Status == "" {
		doc.Status = model.DocumentStatusPending
	}
	return doc
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}
