// Package report publishes provisioning session reports to an optional
// controller webhook. Delivery is best-effort: the wire response to the
// provisioning client never waits on it.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pifleet/wifibridge/internal/domain"
)

// Reporter posts session results to a webhook URL.
type Reporter struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewReporter creates a reporter for the given webhook URL.
func NewReporter(url string, logger *slog.Logger) *Reporter {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil // suppress default logging

	return &Reporter{
		url:    url,
		http:   retryClient.StandardClient(),
		logger: logger,
	}
}

// Publish sends one session result. Failures are logged and swallowed.
func (r *Reporter) Publish(ctx context.Context, result domain.SessionResult) {
	body, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("marshal session report", "err", err)
		return
	}

	if err := r.post(ctx, body); err != nil {
		r.logger.Warn("session report delivery failed",
			"session_id", result.SessionID,
			"err", err,
		)
		return
	}

	r.logger.Debug("session report delivered", "session_id", result.SessionID)
}

func (r *Reporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
