package orderbook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oilroute/dispatch/auth"
	"github.com/oilroute/dispatch/connectors"
)

var defaultBaseURL = "https://orders.oilroute.example/api/v1/orders?start_date=%s&end_date=%s"

// Client retrieves customer orders from the commercial order book API.
// The window is set through WithStartDate and WithEndDate.
type Client struct {
	baseURL   string
	startDate time.Time
	endDate   time.Time
}

// Fetch queries the order book for the configured date range. Both
// WithStartDate and WithEndDate must be provided; the auth client signs
// the request with a bearer token.
func (c *Client) Fetch(authClient *auth.ClientCred, opts ...connectors.Option) (connectors.OrderBookResponse, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.startDate.IsZero() || c.endDate.IsZero() {
		return nil, fmt.Errorf("order book fetch requires a start and end date")
	}

	base := c.baseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf(base, c.startDate.Format(time.RFC3339), c.endDate.Format(time.RFC3339))

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := authClient.SetAuthHeader(req); err != nil {
		return nil, fmt.Errorf("failed to set auth header: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var bookResponse Response
	if err := json.Unmarshal(body, &bookResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &bookResponse, nil
}
