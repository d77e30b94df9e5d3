// Package webhook posts attendance run summaries to webhook endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventProcessed is the event name carried by every payload.
const EventProcessed = "attendance.processed"

// maxResponseBody caps how much of a response body is kept.
const maxResponseBody = 1024 * 1024

// Payload is the JSON body posted to a webhook.
type Payload struct {
	Event     string             `json:"event"`
	RunID     string             `json:"run_id"`
	HasIssues bool               `json:"has_issues"`
	Summary   output.Summary     `json:"summary"`
	Absent    []output.AbsentRow `json:"absent"`
	Metadata  output.Metadata    `json:"metadata"`
}

// NewPayload builds the webhook body for a report.
func NewPayload(report *output.Report) Payload {
	absent := report.Absent
	if absent == nil {
		absent = []output.AbsentRow{}
	}
	return Payload{
		Event:     EventProcessed,
		RunID:     report.Metadata.RunID,
		HasIssues: report.HasIssues(),
		Summary:   report.Summary,
		Absent:    absent,
		Metadata:  report.Metadata,
	}
}

// Client sends attendance reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  "attendlog-webhook",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	Name       string
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts the payload for a report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(NewPayload(report))
	if err != nil {
		return fail(fmt.Errorf("failed to marshal payload: %w", err))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if report.Metadata.RunID != "" {
		req.Header.Set("X-Attendlog-Run", report.Metadata.RunID)
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// ShouldFire determines if a webhook fires for a trigger. Unknown triggers
// behave like on_issues.
func ShouldFire(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasIssues
	}
}

// Dispatch sends the report to every webhook whose trigger fires, one at a
// time in order. Failures are reported in the responses, never returned.
func (c *Client) Dispatch(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) []*Response {
	var responses []*Response
	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.HasIssues()) {
			continue
		}

		resp := c.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})
		resp.Name = wh.Name
		if resp.Name == "" {
			resp.Name = wh.URL
		}
		responses = append(responses, resp)
	}
	return responses
}
