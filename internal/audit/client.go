// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// queryTimeLayout is the timestamp format the audit query endpoint expects
// for window boundaries. Values are UTC.
const queryTimeLayout = "2006-01-02T15:04:05"

// searchResponse is the wire wrapper around one page of audit records.
type searchResponse struct {
	Status  string                  `json:"status"`
	Message *string                 `json:"message"`
	Records []models.RawAuditRecord `json:"records"`
}

// Client is the HTTP implementation of Source against the tenant audit
// query endpoint.
//
// The client performs no retry of its own: HTTP 429 surfaces as
// ErrThrottled so the retry policy owns the backoff decision, and every
// other failure is returned as-is for fatal classification.
//
// Thread safety: safe for concurrent use; each request builds its own
// http.Request.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests to
// shorten timeouts.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// NewClient creates an audit query client for the given endpoint and
// bearer token. The default HTTP timeout is 120 seconds; a saturated page
// of 5000 records can take a while to materialize upstream.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search retrieves one page of audit records for the query's window.
// An HTTP 429 response maps to ErrThrottled; any other non-200 status or
// transport failure is returned for fatal classification by the caller.
func (c *Client) Search(ctx context.Context, q Query) ([]models.RawAuditRecord, error) {
	params := url.Values{}
	params.Set("startDate", q.StartTime.UTC().Format(queryTimeLayout))
	params.Set("endDate", q.EndTime.UTC().Format(queryTimeLayout))
	params.Set("operations", strings.Join(q.Operations, ","))
	params.Set("sessionId", q.SessionID)
	params.Set("sessionCommand", q.SessionCommand)
	params.Set("resultSize", strconv.Itoa(q.ResultSize))

	reqURL := fmt.Sprintf("%s/api/v1/audit/search?%s", c.baseURL, params.Encode())

	start := time.Now()
	resp, err := c.doRequest(ctx, http.MethodGet, reqURL)
	metrics.AuditQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("audit search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.AuditQueries.WithLabelValues("throttled").Inc()
		return nil, fmt.Errorf("audit search returned HTTP 429: %w", ErrThrottled)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("audit search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode audit search response: %w", err)
	}

	if result.Status != "" && result.Status != "success" {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		msg := "unknown error"
		if result.Message != nil {
			msg = *result.Message
		}
		return nil, fmt.Errorf("audit search rejected: %s", msg)
	}

	metrics.AuditQueries.WithLabelValues("success").Inc()
	metrics.RecordsRetrieved.Add(float64(len(result.Records)))
	return result.Records, nil
}

// Disconnect closes the upstream pagination session. Failures are
// reported but never escalate; teardown is best effort.
func (c *Client) Disconnect(ctx context.Context, sessionID string) error {
	params := url.Values{}
	params.Set("sessionId", sessionID)
	reqURL := fmt.Sprintf("%s/api/v1/audit/session?%s", c.baseURL, params.Encode())

	resp, err := c.doRequest(ctx, http.MethodDelete, reqURL)
	if err != nil {
		return fmt.Errorf("disconnect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("disconnect failed with status %d", resp.StatusCode)
	}
	return nil
}

// Ping verifies connectivity and credentials before the run starts.
func (c *Client) Ping(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/api/v1/audit/ping", c.baseURL)

	resp, err := c.doRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return fmt.Errorf("audit source ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audit source ping failed with status %d", resp.StatusCode)
	}
	return nil
}

// doRequest issues one authenticated request. No retry here: throttling
// and backoff decisions belong to the retry policy.
func (c *Client) doRequest(ctx context.Context, method, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}
