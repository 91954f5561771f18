package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/weave/queue"
)

// Client talks to the weave server's HTTP API on behalf of one page.
type Client struct {
	baseURL string
	apiKey  string
	pageURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates an API client. baseURL is the server root without a
// trailing slash; pageURL scopes instruction listing to this page.
func NewClient(baseURL, apiKey, pageURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		pageURL: pageURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fingerprintRequest struct {
	APIKey    string `json:"apiKey"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SubmitFingerprint posts the page fingerprint.
func (c *Client) SubmitFingerprint(ctx context.Context, fp Fingerprint, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	return c.post(ctx, "/api/v1/fingerprint", fingerprintRequest{
		APIKey:    c.apiKey,
		URL:       fp.URL,
		Title:     fp.Title,
		Referrer:  fp.Referrer,
		Content:   fp.Content,
		Timestamp: at.UTC().Format(time.RFC3339),
	}, nil)
}

type listRequest struct {
	APIKey string `json:"apiKey"`
	URL    string `json:"url"`
}

type listResponse struct {
	Success      bool                 `json:"success"`
	Instructions []*queue.Instruction `json:"instructions"`
	Count        int                  `json:"count"`
}

// ListInstructions fetches the pending batch for this page.
func (c *Client) ListInstructions(ctx context.Context) ([]*queue.Instruction, error) {
	var out listResponse
	err := c.post(ctx, "/api/v1/instructions/list", listRequest{APIKey: c.apiKey, URL: c.pageURL}, &out)
	if err != nil {
		return nil, err
	}
	return out.Instructions, nil
}

type statusRequest struct {
	APIKey        string        `json:"apiKey"`
	InstructionID string        `json:"instructionId"`
	Status        string        `json:"status"`
	Result        *queue.Result `json:"result,omitempty"`
}

// ReportStatus proposes a status transition for one instruction.
func (c *Client) ReportStatus(ctx context.Context, instructionID string, status queue.Status, result *queue.Result) error {
	return c.post(ctx, "/api/v1/instructions/status", statusRequest{
		APIKey:        c.apiKey,
		InstructionID: instructionID,
		Status:        string(status),
		Result:        result,
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agent: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("agent: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("agent: decode %s response: %w", path, err)
		}
	}
	return nil
}
