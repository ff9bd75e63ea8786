// Package market provides access to CLOB market data: order-book fetches
// over HTTP and a push subscription feed over WebSocket.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"depthwatch/internal/models"
)

// Client is the market-data surface consumed by the scanner and watcher.
type Client interface {
	// FetchOrderBook returns the book for one market. (nil, nil) means the
	// book is absent (unknown market or empty response), not an error.
	FetchOrderBook(ctx context.Context, marketID string, depth int) (*models.OrderBook, error)
	// HealthCheck reports whether the API is reachable.
	HealthCheck(ctx context.Context) bool
	// Subscribe opens a push feed for the given markets. onUpdate is invoked
	// per book update until the subscription is closed or ctx is cancelled;
	// onError receives feed-level failures.
	Subscribe(ctx context.Context, marketIDs []string, onUpdate func(models.BookUpdate), onError func(error)) (*Subscription, error)
}

// ClientConfig holds HTTP client tuning parameters.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// CLOBClient talks to the CLOB REST and WebSocket APIs.
type CLOBClient struct {
	apiURL     string
	wsURL      string
	httpClient *http.Client
	config     ClientConfig
}

// NewClient creates a CLOB market-data client.
func NewClient(apiURL, wsURL string, timeout time.Duration, config ClientConfig) *CLOBClient {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelayBase <= 0 {
		config.RetryDelayBase = time.Second
	}
	return &CLOBClient{
		apiURL: apiURL,
		wsURL:  wsURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: config,
	}
}

type clobBook struct {
	Market string         `json:"market"`
	Bids   []models.Level `json:"bids"`
	Asks   []models.Level `json:"asks"`
}

// FetchOrderBook retrieves the order book for a market token.
func (c *CLOBClient) FetchOrderBook(ctx context.Context, marketID string, depth int) (*models.OrderBook, error) {
	u, err := url.Parse(c.apiURL + "/book")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("token_id", marketID)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orderbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching orderbook: %d", resp.StatusCode)
	}

	var book clobBook
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fmt.Errorf("failed to decode orderbook: %w", err)
	}

	ob := &models.OrderBook{
		MarketID: marketID,
		Bids:     book.Bids,
		Asks:     book.Asks,
	}
	if depth > 0 {
		if len(ob.Bids) > depth {
			ob.Bids = ob.Bids[:depth]
		}
		if len(ob.Asks) > depth {
			ob.Asks = ob.Asks[:depth]
		}
	}
	return ob, nil
}

// HealthCheck reports whether the CLOB API answers its liveness endpoint.
func (c *CLOBClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// doRequest performs an HTTP GET with linear-backoff retry on transport
// errors and server-side failures.
func (c *CLOBClient) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.config.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.RetryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
