package model

import (
	"strings"
	"time"
)

// ConfidenceLevel buckets a 0-100 confidence score.
type ConfidenceLevel string

const (
	ConfidenceNone   ConfidenceLevel = ""
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// LevelForScore maps a score to its level. A zero score means the extractor
// reported no confidence.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score <= 0:
		return ConfidenceNone
	case score >= 80:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// BoundingBox locates a field on the rendered PDF. Coordinates are
// normalized to [0,1].
type BoundingBox struct {
	Page   int     `json:"page" yaml:"page"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether the box has a page and normalized coordinates.
func (b BoundingBox) Valid() bool {
	if b.Page < 1 {
		return false
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return b.X+b.Width <= 1 && b.Y+b.Height <= 1
}

// RowID builds the per-version surrogate id for a stable key.
func RowID(key, versionID string) string {
	return key + "--" + versionID
}

// ExtractedField is one version's snapshot of a logical field. Key is the
// stable identity across versions; ID is the per-version row id.
type ExtractedField struct {
	ID              string       `json:"rowId"`
	Key             string       `json:"attributeKey"`
	DocumentID      string       `json:"documentId"`
	VersionID       string       `json:"versionId"`
	Name            string       `json:"name"`
	Category        string       `json:"category,omitempty"`
	Section         string       `json:"section,omitempty"`
	Page            int          `json:"page,omitempty"`
	FieldValue      string       `json:"extractedValue"`
	CorrectedValue  *string      `json:"correctedValue"`
	ConfidenceScore float64      `json:"confidenceScore"`
	HighlightedText string       `json:"highlightedText,omitempty"`
	BoundingBox     *BoundingBox `json:"boundingBox,omitempty"`
	ExtractedAt     time.Time    `json:"extractedAt"`
}

// Correction returns the human correction, or "" when there is none.
func (f *ExtractedField) Correction() string {
	if f.CorrectedValue == nil {
		return ""
	}
	return *f.CorrectedValue
}

// EffectiveValue is the trimmed correction when non-blank, else the trimmed
// extracted value.
func (f *ExtractedField) EffectiveValue() string {
	return EffectiveValue(f.FieldValue, f.CorrectedValue)
}

// ConfidenceLevel derives the level from the stored score.
func (f *ExtractedField) ConfidenceLevel() ConfidenceLevel {
	return LevelForScore(f.ConfidenceScore)
}

// EffectiveValue applies the correction-over-extraction rule. Blank
// corrections count as absent.
func EffectiveValue(fieldValue string, corrected *string) string {
	if corrected != nil {
		if c := strings.TrimSpace(*corrected); c != "" {
			return c
		}
	}
	return strings.TrimSpace(fieldValue)
}

// FieldSnapshot is the projection of an ExtractedField the attribution
// engine walks.
type FieldSnapshot struct {
	Key            string
	VersionNumber  int
	FieldValue     string
	CorrectedValue *string
}

// EffectiveValue of the snapshot.
func (s FieldSnapshot) EffectiveValue() string {
	return EffectiveValue(s.FieldValue, s.CorrectedValue)
}
