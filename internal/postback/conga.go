package postback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/resilience"
)

// maxResponseBody caps how much of a response is kept for the postback log.
const maxResponseBody = 64 << 10

// CongaConfig configures the Conga CLM client.
type CongaConfig struct {
	Enabled    bool
	Mock       bool
	BaseURL    string
	ReviewPath string
	APIKey     string
	OutputFile string
	RetryCount int
	Timeout    time.Duration
}

// CongaOption configures a CongaClient.
type CongaOption func(*CongaClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) CongaOption {
	return func(c *CongaClient) {
		c.http = hc
	}
}

// WithRetryConfig overrides the retry policy derived from RetryCount.
func WithRetryConfig(rc resilience.RetryConfig) CongaOption {
	return func(c *CongaClient) {
		c.retry = rc
	}
}

// CongaClient posts reviews to Conga CLM. When disabled every delivery is
// skipped; in mock mode payloads are appended to a JSONL file.
type CongaClient struct {
	cfg   CongaConfig
	http  *http.Client
	retry resilience.RetryConfig

	mu  sync.Mutex // serializes mock file appends
	now func() time.Time
}

// NewCongaClient creates a Conga client.
func NewCongaClient(cfg CongaConfig, opts ...CongaOption) *CongaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &CongaClient{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		retry: resilience.PostbackRetry("conga", cfg.RetryCount),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Target implements Notifier.
func (c *CongaClient) Target() string { return "conga" }

// Endpoint is the review URL, or the mock output path.
func (c *CongaClient) Endpoint() string {
	if c.cfg.Mock {
		return "file://" + c.cfg.OutputFile
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.ReviewPath
}

// Notify implements Notifier.
func (c *CongaClient) Notify(ctx context.Context, ev Event) (*Result, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, eris.Wrap(err, "conga: marshal payload")
	}
	res := &Result{Endpoint: c.Endpoint(), Payload: payload}

	switch {
	case !c.cfg.Enabled:
		res.Skipped = true
		return res, nil
	case c.cfg.Mock:
		res.Attempts = 1
		if err := c.writeMock(ev); err != nil {
			return res, &NotifierError{Endpoint: res.Endpoint, Err: err}
		}
		return res, nil
	}

	var last *congaResponse
	_, err = resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*congaResponse, error) {
		res.Attempts++
		resp, err := c.post(ctx, res.Endpoint, payload)
		if resp != nil {
			last = resp
		}
		return resp, err
	})
	if last != nil {
		res.StatusCode = last.status
		res.ResponseBody = last.body
	}
	if err != nil {
		var ne *NotifierError
		if !errors.As(err, &ne) {
			ne = &NotifierError{Endpoint: res.Endpoint, Err: err}
		}
		return res, ne
	}
	return res, nil
}

type congaResponse struct {
	status int
	body   string
}

func (c *CongaClient) post(ctx context.Context, endpoint string, payload []byte) (*congaResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "conga: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "conga: post review"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "conga: read response"), resp.StatusCode)
	}
	out := &congaResponse{status: resp.StatusCode, body: string(body)}

	if resp.StatusCode >= 400 {
		ne := &NotifierError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: out.body}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return out, resilience.NewTransientError(ne, resp.StatusCode)
		}
		return out, ne
	}
	return out, nil
}

type mockEntry struct {
	Event
	MockedAt    time.Time       `json:"mockedAt"`
	CongaConfig mockCongaConfig `json:"congaConfig"`
}

type mockCongaConfig struct {
	BaseURL    string `json:"baseUrl"`
	ReviewPath string `json:"reviewPath"`
}

func (c *CongaClient) writeMock(ev Event) error {
	line, err := json.Marshal(mockEntry{
		Event:       ev,
		MockedAt:    c.now(),
		CongaConfig: mockCongaConfig{BaseURL: c.cfg.BaseURL, ReviewPath: c.cfg.ReviewPath},
	})
	if err != nil {
		return eris.Wrap(err, "conga: marshal mock entry")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.cfg.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "conga: create mock dir")
		}
	}
	f, err := os.OpenFile(c.cfg.OutputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "conga: open mock file")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrap(err, "conga: write mock file")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "conga: close mock file")
	}

	zap.L().Debug("conga: mock payload written",
		zap.String("component", "postback"),
		zap.String("file", c.cfg.OutputFile),
		zap.String("document_id", ev.DocumentID),
	)
	return nil
}
