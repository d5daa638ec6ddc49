package review

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/contract-review/internal/model"
)

// Replay folds a chronological audit log into the correction state per key
// for one target version. Cleared corrections replay as "". An empty
// versionID replays every version together.
func Replay(entries []model.ReviewedField, versionID string) map[string]string {
	state := make(map[string]string)
	for _, e := range entries {
		if versionID != "" && e.TargetVersionID != versionID {
			continue
		}
		state[e.Key] = e.NewCorrectedValue
	}
	return state
}

// Discrepancy is an audit row or field that does not line up with the log.
type Discrepancy struct {
	Key     string `json:"attributeKey"`
	Version string `json:"versionId"`
	Reason  string `json:"reason"`
}

// Verify checks that each audit row's old value continues the previous row
// for the same key and version, and that replaying the log reproduces the
// corrections stored on fields. fields is usually the latest version.
func Verify(entries []model.ReviewedField, fields []model.ExtractedField) []Discrepancy {
	var out []Discrepancy

	type slot struct{ version, key string }
	last := make(map[slot]string)
	for _, e := range entries {
		s := slot{e.TargetVersionID, e.Key}
		if prev, ok := last[s]; ok && strings.TrimSpace(prev) != strings.TrimSpace(e.OldCorrectedValue) {
			out = append(out, Discrepancy{
				Key:     e.Key,
				Version: e.TargetVersionID,
				Reason:  fmt.Sprintf("review %s: old value %q does not follow %q", e.ReviewID, e.OldCorrectedValue, prev),
			})
		}
		last[s] = e.NewCorrectedValue
	}

	for _, f := range fields {
		want, ok := last[slot{f.VersionID, f.Key}]
		if !ok {
			continue
		}
		if strings.TrimSpace(want) != strings.TrimSpace(f.Correction()) {
			out = append(out, Discrepancy{
				Key:     f.Key,
				Version: f.VersionID,
				Reason:  fmt.Sprintf("stored correction %q, audit log ends at %q", f.Correction(), want),
			})
		}
	}
	return out
}

// SessionSummary groups the audit rows written by one review session.
type SessionSummary struct {
	ReviewID        string                `json:"reviewSessionId"`
	TargetVersionID string                `json:"targetVersionId"`
	Reviewer        string                `json:"reviewer"`
	ReviewedAt      time.Time             `json:"reviewedAt"`
	Changes         []model.ReviewedField `json:"changes"`
}

// GroupBySession groups entries by review, oldest review first.
func GroupBySession(entries []model.ReviewedField) []SessionSummary {
	idx := make(map[string]int)
	var out []SessionSummary
	for _, e := range entries {
		i, ok := idx[e.ReviewID]
		if !ok {
			i = len(out)
			idx[e.ReviewID] = i
			out = append(out, SessionSummary{
				ReviewID:        e.ReviewID,
				TargetVersionID: e.TargetVersionID,
				Reviewer:        e.ReviewedBy,
				ReviewedAt:      e.ReviewedAt,
			})
		}
		out[i].Changes = append(out[i].Changes, e)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ReviewedAt.Before(out[b].ReviewedAt)
	})
	return out
}
