package review

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/store"
)

const latestVersionID = "doc-001-v13"

func versionID(n int) string { return fmt.Sprintf("doc-001-v%d", n) }

func strPtr(s string) *string { return &s }

// contractBundle builds doc-001 with thirteen versions:
//
//	attr-001 Effective Date   constant
//	attr-004 Payment Terms    Net 30 in v1, Net 45 from v2
//	attr-007 Liability Cap    $500,000, corrected to $700,000 in v13
//	attr-009 Counterparty     corrected to Acme Corporation in v13
//	attr-011 Exclusivity      present in v1-v3 only
func contractBundle() store.DocumentBundle {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	b := store.DocumentBundle{
		Document: model.Document{ID: "doc-001", Title: "Master Services Agreement", UploadedAt: at},
	}
	field := func(n int, key, name, value string, corrected *string) model.ExtractedField {
		return model.ExtractedField{
			ID:              model.RowID(key, versionID(n)),
			Key:             key,
			DocumentID:      "doc-001",
			VersionID:       versionID(n),
			Name:            name,
			Page:            1,
			FieldValue:      value,
			CorrectedValue:  corrected,
			ConfidenceScore: 88,
			ExtractedAt:     at,
		}
	}
	for n := 1; n <= 13; n++ {
		b.Versions = append(b.Versions, model.Version{
			ID:            versionID(n),
			DocumentID:    "doc-001",
			VersionNumber: n,
			IsLatest:      n == 13,
			StorageRef:    fmt.Sprintf("s3://contracts/doc-001/v%d.pdf", n),
			CreatedAt:     at.Add(time.Duration(n) * time.Hour),
		})

		terms := "Net 45"
		if n == 1 {
			terms = "Net 30"
		}
		var capFix, partyFix *string
		if n == 13 {
			capFix, partyFix = strPtr("$700,000"), strPtr("Acme Corporation")
		}
		b.Fields = append(b.Fields,
			field(n, "attr-001", "Effective Date", "January 15, 2024", nil),
			field(n, "attr-004", "Payment Terms", terms, nil),
			field(n, "attr-007", "Liability Cap", "$500,000", capFix),
			field(n, "attr-009", "Counterparty", "Acme Corp", partyFix),
		)
		if n <= 3 {
			b.Fields = append(b.Fields, field(n, "attr-011", "Exclusivity", "Exclusive", nil))
		}
	}
	return b
}

func newSeededStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.ImportDocument(ctx, contractBundle()))
	return s
}

// fieldsByKey loads one version's fields keyed by attribute key.
func fieldsByKey(t *testing.T, s store.Store, version string) map[string]*model.ExtractedField {
	t.Helper()
	fields, err := s.ListFields(context.Background(), version)
	require.NoError(t, err)
	out := make(map[string]*model.ExtractedField, len(fields))
	for _, f := range fields {
		out[f.Key] = &f
	}
	return out
}

// cancelAfterCommitStore cancels the caller's context once the transaction
// has committed.
type cancelAfterCommitStore struct {
	store.Store
	cancel context.CancelFunc
}

func (c *cancelAfterCommitStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	err := c.Store.InTx(ctx, fn)
	if err == nil {
		c.cancel()
	}
	return err
}

// failingStore injects a failure into the nth SetCorrectedValue call of
// every transaction.
type failingStore struct {
	store.Store
	failOnSet int
	conflicts int
}

func (f *failingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		if f.conflicts > 0 {
			f.conflicts--
			return conflictErr
		}
		return fn(&failingTx{Tx: tx, failOnSet: f.failOnSet})
	})
}

type failingTx struct {
	store.Tx
	failOnSet int
	sets      int
}

func (t *failingTx) SetCorrectedValue(ctx context.Context, rowID string, value *string) error {
	t.sets++
	if t.sets == t.failOnSet {
		return errInjected
	}
	return t.Tx.SetCorrectedValue(ctx, rowID, value)
}
