package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/resilience"
	"github.com/sells-group/contract-review/internal/store"
)

// MetricsSnapshot holds a point-in-time view of review and postback health.
type MetricsSnapshot struct {
	// Review sessions created within the lookback window.
	ReviewsTotal      int `json:"reviews_total"`
	ReviewsCompleted  int `json:"reviews_completed"`
	ReviewsInProgress int `json:"reviews_in_progress"`

	// Postback attempts within the lookback window.
	PostbackTotal     int     `json:"postback_total"`
	PostbackSucceeded int     `json:"postback_succeeded"`
	PostbackFailed    int     `json:"postback_failed"`
	PostbackSkipped   int     `json:"postback_skipped"`
	PostbackFailRate  float64 `json:"postback_fail_rate"`
	PostbackRetried   int     `json:"postback_retried"`

	// Targets whose circuit breaker is not closed.
	OpenBreakers []string `json:"open_breakers,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// MetricsSource is the slice of store.Store the collector reads.
type MetricsSource interface {
	CountReviewSessions(ctx context.Context, since time.Time) (store.SessionCounts, error)
	ListPostbackLogs(ctx context.Context, filter store.PostbackFilter) ([]model.PostbackLog, error)
}

// BreakerStates reports circuit state per postback target.
type BreakerStates func() map[string]resilience.CircuitState

// Collector gathers metrics from the store and the postback breakers.
type Collector struct {
	src      MetricsSource
	breakers BreakerStates
}

// NewCollector creates a new metrics collector. breakers may be nil.
func NewCollector(src MetricsSource, breakers BreakerStates) *Collector {
	return &Collector{src: src, breakers: breakers}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	counts, err := c.src.CountReviewSessions(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count review sessions")
	}
	for status, n := range counts {
		snap.ReviewsTotal += n
		switch status {
		case model.SessionCompleted:
			snap.ReviewsCompleted += n
		case model.SessionInProgress:
			snap.ReviewsInProgress += n
		}
	}

	logs, err := c.src.ListPostbackLogs(ctx, store.PostbackFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list postback logs")
	}
	snap.PostbackTotal = len(logs)
	for _, l := range logs {
		switch {
		case l.Skipped:
			snap.PostbackSkipped++
		case l.Success:
			snap.PostbackSucceeded++
		default:
			snap.PostbackFailed++
		}
		if l.Attempts > 1 {
			snap.PostbackRetried++
		}
	}
	if finished := snap.PostbackSucceeded + snap.PostbackFailed; finished > 0 {
		snap.PostbackFailRate = float64(snap.PostbackFailed) / float64(finished)
	}

	if c.breakers != nil {
		for target, state := range c.breakers() {
			if state != resilience.CircuitClosed {
				snap.OpenBreakers = append(snap.OpenBreakers, target)
			}
		}
		sort.Strings(snap.OpenBreakers)
	}

	return snap, nil
}
