package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0, ConfidenceNone},
		{-3, ConfidenceNone},
		{12.5, ConfidenceLow},
		{49.99, ConfidenceLow},
		{50, ConfidenceMedium},
		{79, ConfidenceMedium},
		{80, ConfidenceHigh},
		{100, ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestEffectiveValue(t *testing.T) {
	assert.Equal(t, "$500,000", EffectiveValue("$500,000", nil))
	assert.Equal(t, "$500,000", EffectiveValue("  $500,000 ", strPtr("")))
	assert.Equal(t, "$500,000", EffectiveValue("$500,000", strPtr("   ")))
	assert.Equal(t, "$700,000", EffectiveValue("$500,000", strPtr(" $700,000")))
	// Case is significant.
	assert.NotEqual(t, EffectiveValue("net 30", nil), EffectiveValue("Net 30", nil))
}

func TestExtractedField_Accessors(t *testing.T) {
	f := ExtractedField{FieldValue: "Net 30", ConfidenceScore: 64}
	assert.Equal(t, "", f.Correction())
	assert.Equal(t, "Net 30", f.EffectiveValue())
	assert.Equal(t, ConfidenceMedium, f.ConfidenceLevel())

	f.CorrectedValue = strPtr("Net 45")
	assert.Equal(t, "Net 45", f.Correction())
	assert.Equal(t, "Net 45", f.EffectiveValue())
}

func TestBoundingBox_Valid(t *testing.T) {
	assert.True(t, BoundingBox{Page: 1, X: 0.1, Y: 0.2, Width: 0.5, Height: 0.1}.Valid())
	assert.False(t, BoundingBox{Page: 0, X: 0.1, Y: 0.2, Width: 0.5, Height: 0.1}.Valid())
	assert.False(t, BoundingBox{Page: 2, X: 0.7, Y: 0.2, Width: 0.5, Height: 0.1}.Valid())
	assert.False(t, BoundingBox{Page: 2, X: -0.1, Y: 0.2, Width: 0.5, Height: 0.1}.Valid())
}

func TestRowIDAndLatestOf(t *testing.T) {
	assert.Equal(t, "attr-007--doc-001-v13", RowID("attr-007", "doc-001-v13"))

	versions := []Version{{ID: "a", VersionNumber: 1}, {ID: "b", VersionNumber: 2, IsLatest: true}}
	latest := LatestOf(versions)
	if assert.NotNil(t, latest) {
		assert.Equal(t, "b", latest.ID)
	}
	assert.Nil(t, LatestOf(nil))
}

func TestValidDocumentStatus(t *testing.T) {
	assert.True(t, ValidDocumentStatus(DefaultReviewedStatus))
	assert.True(t, ValidDocumentStatus(DocumentStatusInReview))
	assert.False(t, ValidDocumentStatus("reviewed"))
	assert.False(t, ValidDocumentStatus(""))
}

func TestLatestOf(t *testing.T) {
	vs := []Version{{ID: "v1", VersionNumber: 1}, {ID: "v2", VersionNumber: 2, IsLatest: true}}
	assert.Equal(t, "v2", LatestOf(vs).ID)
	assert.Nil(t, LatestOf(vs[:1]))
}
