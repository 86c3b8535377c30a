// Package marketwatch is a Go SDK for the market-watch service: price
// alerts, portfolio holdings, symbol search and market data.
package marketwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
	"marketwatch/internal/util"
)

// ErrUnauthorized is returned for HTTP 401 from any endpoint.
var ErrUnauthorized = errors.New("marketwatch: unauthorized")

// APIError carries any other non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketwatch: status %d: %s", e.StatusCode, e.Body)
}

// Options tunes the underlying HTTP client.
type Options struct {
	Timeout time.Duration
	Debug   bool
}

// Client provides a Go SDK for interacting with the market-watch API.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetDebug(opts.Debug).
			SetTimeout(opts.Timeout).
			SetBaseURL(baseURL),
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// request starts a request carrying ctx, its request id, and token when set.
func (c *Client) request(ctx context.Context, token string) *resty.Request {
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if id := util.RequestID(ctx); id != "" {
		r.SetHeader("X-Request-ID", id)
	}
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// decode maps status codes onto errors and unmarshals a 2xx body into out
// when out is non-nil.
func decode(resp *resty.Response, err error, out any) error {
	if err != nil {
		return err
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code < 200 || code > 299:
		return &APIError{StatusCode: code, Body: string(resp.Body())}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s: %w", resp.Request.URL, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var tok tokenResponse
	resp, err := c.request(ctx, "").
		SetFormData(map[string]string{"username": username, "password": password}).
		Post("/api/auth/token")
	if err := decode(resp, err, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("marketwatch: login returned no token")
	}
	return tok.AccessToken, nil
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

// GetAlerts lists the caller's alerts, newest first.
func (c *Client) GetAlerts(ctx context.Context, token string) ([]domain.Alert, error) {
	var alerts []domain.Alert
	resp, err := c.request(ctx, token).Get("/alerts")
	if err := decode(resp, err, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// AddAlert creates an alert. The created record is not returned; callers
// refetch the collection.
func (c *Client) AddAlert(ctx context.Context, token, symbol string, target decimal.Decimal) error {
	resp, err := c.request(ctx, token).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"target": target.String(),
		}).
		Post("/add-alert")
	return decode(resp, err, nil)
}

// DeleteAlert removes one alert by id.
func (c *Client) DeleteAlert(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).Delete("/alert/" + url.PathEscape(id))
	return decode(resp, err, nil)
}

// ClearAlerts removes all of the caller's alerts.
func (c *Client) ClearAlerts(ctx context.Context, token string) error {
	resp, err := c.request(ctx, token).Delete("/clear-all")
	return decode(resp, err, nil)
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

// GetPortfolio lists the caller's holdings.
func (c *Client) GetPortfolio(ctx context.Context, token string) ([]domain.Holding, error) {
	var holdings []domain.Holding
	resp, err := c.request(ctx, token).Get("/portfolio")
	if err := decode(resp, err, &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

type transactionBody struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Type     string  `json:"type"`
}

// RecordTransaction posts a BUY or SELL. The service expects a plain number
// for price.
func (c *Client) RecordTransaction(ctx context.Context, token string, txn domain.Transaction) error {
	resp, err := c.request(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(transactionBody{
			Symbol:   txn.Symbol,
			Quantity: txn.Quantity,
			Price:    txn.Price.InexactFloat64(),
			Type:     string(txn.Side),
		}).
		Post("/portfolio/transaction")
	return decode(resp, err, nil)
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// GetIndices returns the headline index levels.
func (c *Client) GetIndices(ctx context.Context, token string) (domain.Indices, error) {
	var idx domain.Indices
	resp, err := c.request(ctx, token).Get("/indices")
	if err := decode(resp, err, &idx); err != nil {
		return domain.Indices{}, err
	}
	return idx, nil
}

// SearchStock looks up symbols matching query. token may be empty.
func (c *Client) SearchStock(ctx context.Context, token, query string) ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	resp, err := c.request(ctx, token).
		SetQueryParam("query", query).
		Get("/search-stock")
	if err := decode(resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StockHistory returns recent closing prices for symbol.
func (c *Client) StockHistory(ctx context.Context, token, symbol string) ([]domain.PricePoint, error) {
	var out []domain.PricePoint
	resp, err := c.request(ctx, token).Get("/stock-history/" + url.PathEscape(symbol))
	if err := decode(resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketNews returns current market headlines.
func (c *Client) MarketNews(ctx context.Context, token string) ([]domain.NewsItem, error) {
	var out []domain.NewsItem
	resp, err := c.request(ctx, token).Get("/market-news")
	if err := decode(resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeStock returns the service's free-text analysis of symbol.
func (c *Client) AnalyzeStock(ctx context.Context, token, symbol string) (string, error) {
	var out struct {
		Analysis string `json:"analysis"`
	}
	resp, err := c.request(ctx, token).Get("/analyze-stock/" + url.PathEscape(symbol))
	if err := decode(resp, err, &out); err != nil {
		return "", err
	}
	return out.Analysis, nil
}
