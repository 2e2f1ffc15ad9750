// Package watchlist is a Go SDK for the stockwatch HTTP API.
package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockwatch/internal/domain"
)

// Client provides typed access to the watchlist endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new watchlist API client. A zero timeout means 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListStocks returns every tracked symbol in server order. Both the grouped
// and the legacy flat response shapes are accepted.
func (c *Client) ListStocks(ctx context.Context) ([]domain.TrackedSymbol, error) {
	var items []wireItem
	if err := c.do(ctx, "list stocks", http.MethodGet, "/api/stocks", nil, &items); err != nil {
		return nil, err
	}
	return groupItems(items), nil
}

// AddStock creates a notice and returns its server-assigned id.
func (c *Client) AddStock(ctx context.Context, n domain.NewNotice) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, "add stock", http.MethodPost, "/api/stocks", n, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetPrice returns the current price for symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		Price *float64 `json:"price"`
	}
	path := "/api/price/" + url.PathEscape(symbol)
	if err := c.do(ctx, "get price", http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Price == nil {
		return 0, fmt.Errorf("get price %s: %w", symbol, ErrNoData)
	}
	return *resp.Price, nil
}

// GetHistory returns daily closes for symbol over period, oldest first. An
// empty series is not an error.
func (c *Client) GetHistory(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error) {
	var resp struct {
		Data []domain.PricePoint `json:"data"`
	}
	path := "/api/history/" + url.PathEscape(symbol) + "?period=" + url.QueryEscape(string(period))
	if err := c.do(ctx, "get history", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteNotice removes a single notice.
func (c *Client) DeleteNotice(ctx context.Context, id int64) error {
	return c.do(ctx, "delete notice", http.MethodDelete, "/api/stocks/"+strconv.FormatInt(id, 10), nil, nil)
}

// DeleteSymbol removes every notice for symbol.
func (c *Client) DeleteSymbol(ctx context.Context, symbol string) error {
	return c.do(ctx, "delete symbol", http.MethodDelete, "/api/stocks/symbol/"+url.PathEscape(symbol), nil, nil)
}

// do issues one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &APIError{Op: op, Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
