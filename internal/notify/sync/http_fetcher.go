package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"cvintake/internal/notify/models"
)

// HTTPFetcher polls a remote ingress endpoint. Used when the intake client
// runs in a separate process from the ingress; in-process deployments hand
// the mailbox to the Syncer directly.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher against the ingress GET endpoint.
func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: url, client: client}
}

// FetchNotifications retrieves the retained ingress list.
func (f *HTTPFetcher) FetchNotifications(ctx context.Context) ([]models.Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ingress request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ingress notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingress returned status %d", resp.StatusCode)
	}

	var body struct {
		Success       bool                  `json:"success"`
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ingress response: %w", err)
	}
	return body.Notifications, nil
}
