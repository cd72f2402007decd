package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
)

// TokenProvider returns the current bearer token for the backend API.
type TokenProvider func(ctx context.Context) (string, error)

// LookupError means the order fetch failed or the order was not found.
type LookupError struct {
	OrderID    int64
	StatusCode int
	NotFound   bool
	Err        error
}

func (e *LookupError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("order %d not found", e.OrderID)
	}
	return fmt.Sprintf("order %d lookup failed: %v", e.OrderID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Client fetches full order records from the backend REST API.
type Client struct {
	baseURL string
	tokens  TokenProvider
	http    *http.Client
}

func NewClient(baseURL string, tokens TokenProvider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetOrder performs GET /orders/{id} and returns the immutable order value.
func (c *Client) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, &LookupError{OrderID: id, Err: fmt.Errorf("token: %w", err)}
	}

	url := fmt.Sprintf("%s/orders/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LookupError{OrderID: id, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &LookupError{OrderID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &LookupError{OrderID: id, StatusCode: resp.StatusCode, NotFound: true}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &LookupError{
			OrderID:    id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body)),
		}
	}

	var envelope model.OrderEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &LookupError{OrderID: id, StatusCode: resp.StatusCode, Err: err}
	}
	if !envelope.Success {
		return nil, &LookupError{OrderID: id, StatusCode: resp.StatusCode, Err: fmt.Errorf("backend reported failure")}
	}

	order := envelope.Data.Order
	return &order, nil
}
