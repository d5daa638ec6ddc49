package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/attribution"
	"github.com/sells-group/contract-review/internal/config"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/monitoring"
	"github.com/sells-group/contract-review/internal/postback"
	"github.com/sells-group/contract-review/internal/query"
	"github.com/sells-group/contract-review/internal/review"
	"github.com/sells-group/contract-review/internal/seed"
	"github.com/sells-group/contract-review/internal/store"
	sfpkg "github.com/sells-group/contract-review/pkg/salesforce"
)

// withConfig installs c as the global config for the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func sqliteConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "cli.db")},
		Review: config.ReviewConfig{TimeoutSecs: 5, DefaultStatus: "Reviewed", ConflictRetries: 1},
		Cache:  config.CacheConfig{Driver: "memory", TTLSecs: 60},
		Postback: config.PostbackConfig{
			Target:      "conga",
			Enabled:     true,
			Mock:        true,
			OutputFile:  filepath.Join(dir, "postbacks.jsonl"),
			TimeoutSecs: 2,
			Workers:     1,
			QueueSize:   8,
		},
	}
}

func TestParseCorrections(t *testing.T) {
	got, err := parseCorrections([]string{"attr-001=March 1, 2024", "attr-007=", " attr-004 =Net=60", "attr-001=April"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"attr-001": "April", "attr-007": "", "attr-004": "Net=60"}, got)

	_, err = parseCorrections([]string{"no-equals"})
	assert.True(t, apperr.IsValidation(err))
	_, err = parseCorrections([]string{"=value"})
	assert.True(t, apperr.IsValidation(err))
}

func TestFormatAttribution(t *testing.T) {
	var buf bytes.Buffer
	formatAttribution(&buf, map[string]int{"attr-007": 13, "attr-001": 1}, 13)
	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("attr-001")), bytes.Index(buf.Bytes(), []byte("attr-007")))
	assert.Contains(t, out, "v13")
	assert.Contains(t, out, "attributed up to v13")
}

func TestFormatOutcome(t *testing.T) {
	var buf bytes.Buffer
	formatOutcome(&buf, &review.Outcome{SessionID: "r-1", VersionID: "doc-001-v13", VersionNumber: 13, UpdatedKeys: []string{"attr-001", "attr-004"}})
	assert.Contains(t, buf.String(), "applied to v13")
	assert.Contains(t, buf.String(), "attr-001, attr-004")

	buf.Reset()
	formatOutcome(&buf, &review.Outcome{SessionID: "r-2", VersionNumber: 13, UpdatedKeys: []string{}})
	assert.Contains(t, buf.String(), "No fields changed.")
}

func TestFormatAudit(t *testing.T) {
	at := time.Date(2026, 5, 4, 13, 30, 0, 0, time.UTC)
	entries := []model.ReviewedField{
		{ReviewID: "r1", TargetVersionID: "doc-001-v13", Key: "attr-007", OldCorrectedValue: "", NewCorrectedValue: "$900,000", ReviewedBy: "jane", ReviewedAt: at},
	}
	var buf bytes.Buffer
	formatAudit(&buf, &query.AuditView{
		Entries:       entries,
		Sessions:      review.GroupBySession(entries),
		Discrepancies: []review.Discrepancy{{Key: "attr-007", Version: "doc-001-v13", Reason: "stored correction differs"}},
	})
	out := buf.String()
	assert.Contains(t, out, "2026-05-04 13:30")
	assert.Contains(t, out, "jane")
	assert.Contains(t, out, "$900,000")
	assert.Contains(t, out, "1 review(s), 1 change(s)")
	assert.Contains(t, out, "MISMATCH doc-001-v13 attr-007")

	buf.Reset()
	formatAudit(&buf, &query.AuditView{})
	assert.Contains(t, buf.String(), "No reviews recorded.")
}

func TestFormatPostbacks(t *testing.T) {
	code := 503
	var buf bytes.Buffer
	formatPostbacks(&buf, []model.PostbackLog{
		{DocumentID: "doc-001", VersionID: "doc-001-v13", Target: "conga", StatusCode: &code, Attempts: 3, Error: "conga: status 503"},
		{DocumentID: "doc-001", VersionID: "doc-001-v13", Target: "conga", Skipped: true},
		{DocumentID: "doc-002", VersionID: "doc-002-v1", Target: "salesforce", Success: true, Attempts: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "503")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "salesforce")
}

func TestFormatReviewRecords(t *testing.T) {
	var buf bytes.Buffer
	formatReviewRecords(&buf, []sfpkg.ReviewRecord{{ID: "a0X1", VersionID: "doc-001-v13", Reviewer: "jane", UpdatedCount: 2, ReviewedAt: "2026-05-04T13:30:00Z"}})
	assert.Contains(t, buf.String(), "a0X1")
	assert.Contains(t, buf.String(), "jane")
}

func TestFormatHealth(t *testing.T) {
	var buf bytes.Buffer
	formatHealth(&buf, &monitoring.MetricsSnapshot{
		ReviewsTotal: 4, ReviewsCompleted: 4,
		PostbackTotal: 10, PostbackSucceeded: 6, PostbackFailed: 4, PostbackFailRate: 0.4,
		OpenBreakers: []string{"conga"}, LookbackHours: 24,
	}, []monitoring.Alert{{Type: monitoring.AlertPostbackFailureRate, Severity: "high", Message: "40% of postbacks failed"}})
	out := buf.String()
	assert.Contains(t, out, "last 24h")
	assert.Contains(t, out, "fail rate 40.0%")
	assert.Contains(t, out, "open for conga")
	assert.Contains(t, out, "ALERT [high]")

	buf.Reset()
	formatHealth(&buf, &monitoring.MetricsSnapshot{LookbackHours: 1}, nil)
	assert.Contains(t, buf.String(), "No alerts.")
}

func TestInitStore_UnknownDriver(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "mysql"}})
	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestInitStore_PostgresNeedsURL(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "postgres"}})
	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "database_url")
}

func TestInitCache(t *testing.T) {
	ctx := context.Background()

	c, closer, err := initCache(ctx, config.CacheConfig{Driver: "memory", TTLSecs: 30})
	require.NoError(t, err)
	assert.IsType(t, &attribution.MemoryCache{}, c)
	assert.Nil(t, closer)

	c, _, err = initCache(ctx, config.CacheConfig{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, attribution.NopCache{}, c)

	_, _, err = initCache(ctx, config.CacheConfig{Driver: "redis", RedisAddr: "127.0.0.1:1", TTLSecs: 30})
	assert.Error(t, err)
}

func TestInitNotifier(t *testing.T) {
	n, err := initNotifier(config.PostbackConfig{Target: "conga", Mock: true, OutputFile: "x.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, "conga", n.Target())
	assert.IsType(t, &postback.CongaClient{}, n)

	_, err = initNotifier(config.PostbackConfig{Target: "salesforce"})
	assert.ErrorContains(t, err, "postback.enabled")

	withConfig(t, &config.Config{})
	_, err = initNotifier(config.PostbackConfig{Target: "salesforce", Enabled: true})
	assert.ErrorContains(t, err, "client id is required")
}

func TestInitEnv_ReviewFlowsToPostback(t *testing.T) {
	c := sqliteConfig(t)
	withConfig(t, c)
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	_, err = seed.Import(ctx, st, seed.Sample())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	env, err := initEnv(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, env.Dispatcher)

	out, err := env.Recorder.Submit(ctx, review.Submission{
		DocumentID:  "doc-001",
		Corrections: map[string]string{"attr-001": "March 1, 2024"},
		Reviewer:    "cli",
	})
	require.NoError(t, err)
	assert.Equal(t, 13, out.VersionNumber)

	changed, err := env.Engine.Compute(ctx, "doc-001", 13)
	require.NoError(t, err)
	assert.Equal(t, 13, changed["attr-001"])

	env.Close()

	f, err := os.Open(c.Postback.OutputFile)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		assert.Contains(t, sc.Text(), out.SessionID)
	}
	assert.Equal(t, 1, lines)

	st2, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st2.Close()
	logs, err := st2.ListPostbackLogs(ctx, store.PostbackFilter{DocumentID: "doc-001"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, "conga", logs[0].Target)
}

func TestInitEnv_WithoutPostback(t *testing.T) {
	withConfig(t, sqliteConfig(t))

	env, err := initEnv(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Dispatcher)
	assert.NotNil(t, env.Query)

	_, err = env.Query.Attributes(context.Background(), "doc-404", query.Latest)
	assert.True(t, apperr.IsNotFound(err))
}
