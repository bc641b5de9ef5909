// Package backend is the HTTP client for the central compliance service.
// It classifies every failed submission as transient or permanent so the
// sync engine knows whether to retry.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"billboardwatch/models"
)

var (
	// ErrTransient marks failures worth retrying with backoff: network
	// errors, timeouts, 429 and 5xx responses.
	ErrTransient = errors.New("transient submission failure")
	// ErrPermanent marks rejections that will not succeed on retry.
	ErrPermanent = errors.New("permanent submission failure")
)

// Ack is the backend's acknowledgement of a submitted report. The status
// reflects any triage the backend already performed.
type Ack struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// Client submits reports to the central service.
type Client interface {
	SubmitReport(ctx context.Context, report *models.ViolationReport) (Ack, error)
}

// HTTPClient is the production Client over the backend's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SubmitReport POSTs the report. Submission is idempotent on the report
// id: a 409 means the backend already has this report and counts as
// success.
func (c *HTTPClient) SubmitReport(ctx context.Context, report *models.ViolationReport) (Ack, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: encoding report %s: %v", ErrPermanent, report.ID, err)
	}

	url := fmt.Sprintf("%s/api/v3/reports", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return Ack{}, fmt.Errorf("%w: creating request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300,
		resp.StatusCode == http.StatusConflict:
		return decodeAck(body, report), nil
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return Ack{}, fmt.Errorf("%w: backend returned %d: %s", ErrTransient, resp.StatusCode, body)
	default:
		return Ack{}, fmt.Errorf("%w: backend returned %d: %s", ErrPermanent, resp.StatusCode, body)
	}
}

// decodeAck tolerates empty or partial acknowledgement bodies: missing
// fields fall back to the submitted report's values.
func decodeAck(body []byte, report *models.ViolationReport) Ack {
	var ack Ack
	if len(body) > 0 {
		// An undecodable body on a 2xx still counts as accepted.
		_ = json.Unmarshal(body, &ack)
	}
	if ack.ID == "" {
		ack.ID = report.ID
	}
	if ack.Status == "" {
		ack.Status = report.Status
	}
	return ack
}
