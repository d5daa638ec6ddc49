package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// testBundle builds a two-version document. liability_cap changes in v2
// and renewal_term first appears there.
func testBundle(docID string) DocumentBundle {
	v1 := docID + "-v1"
	v2 := docID + "-v2"
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	field := func(version, key, value string, score float64) model.ExtractedField {
		return model.ExtractedField{
			ID:              model.RowID(key, version),
			Key:             key,
			DocumentID:      docID,
			VersionID:       version,
			Name:            key,
			Page:            1,
			FieldValue:      value,
			ConfidenceScore: score,
			ExtractedAt:     at,
		}
	}
	return DocumentBundle{
		Document: model.Document{ID: docID, Title: "Master Services Agreement", UploadedAt: at},
		Versions: []model.Version{
			{ID: v1, DocumentID: docID, VersionNumber: 1, CreatedAt: at},
			{ID: v2, DocumentID: docID, VersionNumber: 2, IsLatest: true, StorageRef: "s3://contracts/" + docID + "/v2.pdf", CreatedAt: at.Add(time.Hour)},
		},
		Fields: []model.ExtractedField{
			field(v1, "payment_terms", "Net 30", 91),
			field(v1, "liability_cap", "$500,000", 62),
			field(v2, "payment_terms", "Net 30", 93),
			field(v2, "liability_cap", "$750,000", 71),
			field(v2, "renewal_term", "12 months", 0),
		},
	}
}

func strPtr(s string) *string { return &s }

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ImportAndGetDocument", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))

		doc, err := s.GetDocument(ctx, "doc-001")
		require.NoError(t, err)
		assert.Equal(t, "Master Services Agreement", doc.Title)
		assert.Equal(t, model.DocumentStatusPending, doc.Status)
		assert.Equal(t, "doc-001-v2", doc.CurrentVersionID)
		assert.Equal(t, 2, doc.CurrentVersionNumber)
		assert.Equal(t, 3, doc.AttributeCount)
		assert.InDelta(t, 82.0, doc.OverallConfidence, 0.001)
		assert.Equal(t, "s3://contracts/doc-001/v2.pdf", doc.StorageRef)
	})

	t.Run("ImportDuplicateRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))
		err := s.ImportDocument(ctx, testBundle("doc-001"))
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("GetDocumentNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDocument(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("ListDocumentsFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))
		b := testBundle("doc-002")
		b.Document.Status = model.DocumentStatusReviewed
		require.NoError(t, s.ImportDocument(ctx, b))

		all, err := s.ListDocuments(ctx, DocumentFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		reviewed, err := s.ListDocuments(ctx, DocumentFilter{Status: model.DocumentStatusReviewed})
		require.NoError(t, err)
		require.Len(t, reviewed, 1)
		assert.Equal(t, "doc-002", reviewed[0].ID)

		page, err := s.ListDocuments(ctx, DocumentFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("Versions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))

		versions, err := s.ListVersions(ctx, "doc-001")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 2, versions[0].VersionNumber)
		assert.True(t, versions[0].IsLatest)
		assert.False(t, versions[1].IsLatest)

		latest, err := s.GetLatestVersion(ctx, "doc-001")
		require.NoError(t, err)
		assert.Equal(t, "doc-001-v2", latest.ID)

		v1, err := s.GetVersionByNumber(ctx, "doc-001", 1)
		require.NoError(t, err)
		assert.Equal(t, "doc-001-v1", v1.ID)

		_, err = s.GetVersionByNumber(ctx, "doc-001", 9)
		assert.True(t, apperr.IsNotFound(err))

		_, err = s.GetLatestVersion(ctx, "missing")
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("ListFieldsKeepsBoundingBox", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		b := testBundle("doc-001")
		b.Fields[2].BoundingBox = &model.BoundingBox{Page: 1, X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05}
		b.Fields[2].CorrectedValue = strPtr("Net 45")
		require.NoError(t, s.ImportDocument(ctx, b))

		fields, err := s.ListFields(ctx, "doc-001-v2")
		require.NoError(t, err)
		require.Len(t, fields, 3)

		byKey := map[string]model.ExtractedField{}
		for _, f := range fields {
			byKey[f.Key] = f
		}
		pt := byKey["payment_terms"]
		require.NotNil(t, pt.BoundingBox)
		assert.InDelta(t, 0.3, pt.BoundingBox.Width, 0.0001)
		assert.Equal(t, "Net 45", pt.Correction())
		assert.Nil(t, byKey["renewal_term"].CorrectedValue)
		assert.Nil(t, byKey["renewal_term"].BoundingBox)
	})

	t.Run("FieldHistoryOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))

		snaps, err := s.FieldHistory(ctx, "doc-001", 2)
		require.NoError(t, err)
		require.Len(t, snaps, 5)
		assert.Equal(t, "liability_cap", snaps[0].Key)
		assert.Equal(t, 1, snaps[0].VersionNumber)
		assert.Equal(t, "liability_cap", snaps[1].Key)
		assert.Equal(t, 2, snaps[1].VersionNumber)
		assert.Equal(t, "renewal_term", snaps[4].Key)

		upTo1, err := s.FieldHistory(ctx, "doc-001", 1)
		require.NoError(t, err)
		assert.Len(t, upTo1, 2)
	})

	t.Run("TxCommits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))

		now := time.Now().UTC()
		sessionID := uuid.NewString()
		err := s.InTx(ctx, func(tx Tx) error {
			require.NoError(t, tx.LockDocument(ctx, "doc-001"))
			v, err := tx.LatestVersion(ctx, "doc-001")
			require.NoError(t, err)
			require.NoError(t, tx.CreateReviewSession(ctx, &model.ReviewSession{
				ID: sessionID, DocumentID: "doc-001", TargetVersionID: v.ID, Reviewer: "alice",
				Status: model.SessionInProgress, CreatedAt: now, UpdatedAt: now,
			}))

			f, err := tx.LockField(ctx, v.ID, "liability_cap")
			require.NoError(t, err)
			require.NotNil(t, f)
			require.NoError(t, tx.SetCorrectedValue(ctx, f.ID, strPtr("$800,000")))
			require.NoError(t, tx.InsertReviewedField(ctx, &model.ReviewedField{
				ID: uuid.NewString(), ReviewID: sessionID, DocumentID: "doc-001", TargetVersionID: v.ID,
				Key: "liability_cap", OriginalValue: f.FieldValue, NewCorrectedValue: "$800,000",
				ReviewedBy: "alice", ReviewedAt: now,
			}))

			missing, err := tx.LockField(ctx, v.ID, "no_such_key")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, tx.CompleteReviewSession(ctx, sessionID, now))
			return tx.MarkDocumentReviewed(ctx, "doc-001", model.DocumentStatusReviewed, "alice")
		})
		require.NoError(t, err)

		rs, err := s.GetReviewSession(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCompleted, rs.Status)
		assert.NotNil(t, rs.CompletedAt)
		assert.Equal(t, "doc-001-v2", rs.TargetVersionID)

		doc, err := s.GetDocument(ctx, "doc-001")
		require.NoError(t, err)
		assert.Equal(t, model.DocumentStatusReviewed, doc.Status)
		assert.Equal(t, "alice", doc.ReviewedBy)

		audit, err := s.ListReviewedFields(ctx, "doc-001")
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "$750,000", audit[0].OriginalValue)
		assert.Equal(t, "", audit[0].OldCorrectedValue)
		assert.Equal(t, "$800,000", audit[0].NewCorrectedValue)

		counts, err := s.CountReviewSessions(ctx, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, counts[model.SessionCompleted])
	})

	t.Run("TxRollsBack", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.ImportDocument(ctx, testBundle("doc-001")))

		err := s.InTx(ctx, func(tx Tx) error {
			f, err := tx.LockField(ctx, "doc-001-v2", "liability_cap")
			require.NoError(t, err)
			require.NoError(t, tx.SetCorrectedValue(ctx, f.ID, strPtr("$1")))
			return apperr.Invalid("test", "abort")
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))

		fields, err := s.ListFields(ctx, "doc-001-v2")
		require.NoError(t, err)
		for _, f := range fields {
			assert.Nil(t, f.CorrectedValue, f.Key)
		}
	})

	t.Run("TxLockMissingDocument", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		err := s.InTx(ctx, func(tx Tx) error {
			return tx.LockDocument(ctx, "missing")
		})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("PostbackLogs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()
		code := 202

		require.NoError(t, s.InsertPostbackLog(ctx, &model.PostbackLog{
			ID: uuid.NewString(), DocumentID: "doc-001", VersionID: "doc-001-v2", Target: "conga",
			Endpoint: "https://conga.example.com/reviews", Payload: []byte(`{"documentId":"doc-001"}`),
			StatusCode: &code, Success: true, Attempts: 1, CreatedAt: now,
		}))
		require.NoError(t, s.InsertPostbackLog(ctx, &model.PostbackLog{
			ID: uuid.NewString(), DocumentID: "doc-002", VersionID: "doc-002-v1", Target: "conga",
			Error: "connection refused", Attempts: 3, CreatedAt: now,
		}))

		all, err := s.ListPostbackLogs(ctx, PostbackFilter{Since: now.Add(-time.Minute)})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		one, err := s.ListPostbackLogs(ctx, PostbackFilter{DocumentID: "doc-001"})
		require.NoError(t, err)
		require.Len(t, one, 1)
		require.NotNil(t, one[0].StatusCode)
		assert.Equal(t, 202, *one[0].StatusCode)
		assert.True(t, one[0].Success)
		assert.JSONEq(t, `{"documentId":"doc-001"}`, string(one[0].Payload))

		two, err := s.ListPostbackLogs(ctx, PostbackFilter{DocumentID: "doc-002"})
		require.NoError(t, err)
		require.Len(t, two, 1)
		assert.Nil(t, two[0].StatusCode)
		assert.Equal(t, "connection refused", two[0].Error)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSummarize_NoVersions(t *testing.T) {
	doc := summarize(DocumentBundle{Document: model.Document{ID: "d"}})
	assert.Equal(t, "", doc.CurrentVersionID)
	assert.Equal(t, 0, doc.AttributeCount)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, 1000, listLimit(0))
	assert.Equal(t, 25, listLimit(25))
}
