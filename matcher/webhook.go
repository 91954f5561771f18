package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook notifies a matcher over HTTP POST. The payload and response are
// small fixed JSON shapes; anything else from the endpoint is an error.
type Webhook struct {
	endpoint string
	client   *http.Client
}

// NewWebhook creates a Webhook notifier. client may be nil.
func NewWebhook(endpoint string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{endpoint: endpoint, client: client}
}

type notifyRequest struct {
	ContentID string `json:"content_id"`
	OwnerID   string `json:"owner_id"`
}

type notifyResponse struct {
	OpportunitiesCreated int `json:"opportunities_created"`
}

// NotifyContentReady implements Notifier.
func (w *Webhook) NotifyContentReady(ctx context.Context, contentID, ownerID string) (int, error) {
	body, err := json.Marshal(notifyRequest{ContentID: contentID, OwnerID: ownerID})
	if err != nil {
		return 0, fmt.Errorf("matcher: marshal notify: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("matcher: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("matcher: notify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("matcher: notify returned %d", resp.StatusCode)
	}

	var nr notifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return 0, fmt.Errorf("matcher: decode notify response: %w", err)
	}
	return nr.OpportunitiesCreated, nil
}
