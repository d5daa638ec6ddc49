package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-review/internal/apperr"
)

func TestNewSQLite_InMemory(t *testing.T) {
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.ImportDocument(ctx, testBundle("doc-mem")))

	doc, err := st.GetDocument(ctx, "doc-mem")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.CurrentVersionNumber)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SetCorrectedValueMissingRow(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(tx Tx) error {
		return tx.SetCorrectedValue(ctx, "nope--nope", nil)
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSQLite_ClearCorrectionStoresNull(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()
	b := testBundle("doc-001")
	b.Fields[3].CorrectedValue = strPtr("$900,000")
	require.NoError(t, st.ImportDocument(ctx, b))

	require.NoError(t, st.InTx(ctx, func(tx Tx) error {
		return tx.SetCorrectedValue(ctx, b.Fields[3].ID, nil)
	}))

	fields, err := st.ListFields(ctx, "doc-001-v2")
	require.NoError(t, err)
	for _, f := range fields {
		assert.Nil(t, f.CorrectedValue, f.Key)
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.True(t, apperr.IsStorage(classify("op", errors.New("disk full"))))

	nf := apperr.NotFound("document", "x")
	assert.Equal(t, error(nf), classify("op", nf))
}
