package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPostbackFailureRate AlertType = "postback_failure_rate"
	AlertPostbackCircuitOpen AlertType = "postback_circuit_open"
	AlertIncompleteSessions  AlertType = "incomplete_review_sessions"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check postback failure rate. Skipped postbacks are not counted.
	finished := snap.PostbackSucceeded + snap.PostbackFailed
	if finished >= 5 && snap.PostbackFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPostbackFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Postback failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.PostbackFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.PostbackFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.PostbackFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.PostbackFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if len(snap.OpenBreakers) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertPostbackCircuitOpen,
			Severity: "high",
			Message: fmt.Sprintf(
				"Postback circuit not closed for %d target(s): %v",
				len(snap.OpenBreakers), snap.OpenBreakers,
			),
			Details: map[string]any{
				"targets": snap.OpenBreakers,
			},
			Timestamp: now,
		})
	}

	// Sessions commit as COMPLETED; anything else visible means a write
	// escaped the review transaction.
	if snap.ReviewsInProgress > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertIncompleteSessions,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d review session(s) visible as IN_PROGRESS in last %dh",
				snap.ReviewsInProgress, snap.LookbackHours,
			),
			Details: map[string]any{
				"in_progress": snap.ReviewsInProgress,
				"total":       snap.ReviewsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
