package query

import (
	"context"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/review"
)

// AuditView is a document's review history. Replay holds the corrections
// the log reconstructs for the latest version; Discrepancies lists where
// the log and the stored fields disagree.
type AuditView struct {
	DocumentID      string                  `json:"documentId"`
	LatestVersionID string                  `json:"latestVersionId"`
	Entries         []model.ReviewedField   `json:"entries"`
	Sessions        []review.SessionSummary `json:"sessions"`
	Replay          map[string]string       `json:"replay"`
	Discrepancies   []review.Discrepancy    `json:"discrepancies"`
}

// Audit returns the audit log of a document.
func (s *Service) Audit(ctx context.Context, documentID string) (*AuditView, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListReviewedFields(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ReviewedField{}
	}

	view := &AuditView{
		DocumentID:    documentID,
		Entries:       entries,
		Sessions:      review.GroupBySession(entries),
		Replay:        map[string]string{},
		Discrepancies: []review.Discrepancy{},
	}

	latest, err := s.store.GetLatestVersion(ctx, documentID)
	if err != nil {
		return nil, err
	}
	view.LatestVersionID = latest.ID
	view.Replay = review.Replay(entries, latest.ID)

	fields, err := s.store.ListFields(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	if d := review.Verify(entries, fields); len(d) > 0 {
		view.Discrepancies = d
	}
	if view.Sessions == nil {
		view.Sessions = []review.SessionSummary{}
	}
	return view, nil
}
