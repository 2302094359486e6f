package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fetanpay/verification-service/pkg/httpclient"
)

// HTTPStatusFetcher fetches public payment status over the REST API.
type HTTPStatusFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStatusFetcher creates a fetcher against the given API base URL
// (e.g. "https://api.fetanpay.et").
func NewHTTPStatusFetcher(baseURL string, client *http.Client) *HTTPStatusFetcher {
	if client == nil {
		client = httpclient.New(httpclient.DefaultClientConfig(), 15*time.Second)
	}

	return &HTTPStatusFetcher{
		baseURL: baseURL,
		client:  client,
	}
}

// FetchStatus implements StatusFetcher.
func (f *HTTPStatusFetcher) FetchStatus(ctx context.Context, paymentID string) (*Snapshot, error) {
	url := fmt.Sprintf("%s/payments/%s/public", f.baseURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Status           string `json:"status"`
		SecondsRemaining int64  `json:"seconds_remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &Snapshot{
		Status:           body.Status,
		SecondsRemaining: body.SecondsRemaining,
		Expired:          body.Status == "expired",
	}, nil
}
