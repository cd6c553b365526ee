package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
)

const restPrefix = "/rest/v1/"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the generic tabular REST surface of the backend. It holds
// no mutable state after construction and never retries.
type Client struct {
	log     *slog.Logger
	baseURL string
	http    *resty.Client
}

func New(log *slog.Logger, cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL+restPrefix).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Prefer", "return=representation")

	return &Client{
		log:     log,
		baseURL: baseURL,
		http:    client,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// Select reads rows of table into dest, which must point to a slice. An empty
// table yields an empty slice and a nil error.
func (c *Client) Select(ctx context.Context, table string, q Query, dest any) error {
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(q.Values()).
		Get(table)
	if err != nil {
		return c.transportErr(http.MethodGet, table, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return c.statusErr(http.MethodGet, table, resp)
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", table, err)
	}

	return nil
}

// Insert creates one record and decodes the echoed representation into dest
// when dest is not nil.
func (c *Client) Insert(ctx context.Context, table string, record any, dest any) error {
	resp, err := c.request(ctx).
		SetBody(record).
		Post(table)
	if err != nil {
		return c.transportErr(http.MethodPost, table, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
	default:
		return c.statusErr(http.MethodPost, table, resp)
	}

	if dest == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("failed to decode created %s: %w", table, err)
	}

	return nil
}

// Update patches every row matching the raw filter expression, e.g.
// "id=eq.42". The boolean reports whether the backend accepted the change.
// When the backend echoes the patched rows they are decoded into dest; a 204
// carries no body and leaves dest untouched.
func (c *Client) Update(ctx context.Context, table, filter string, patch any, dest any) (bool, error) {
	resp, err := c.request(ctx).
		SetQueryString(filter).
		SetBody(patch).
		Patch(table)
	if err != nil {
		return false, c.transportErr(http.MethodPatch, table, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
	default:
		return false, c.statusErr(http.MethodPatch, table, resp)
	}

	if dest == nil || len(bytes.TrimSpace(resp.Body())) == 0 {
		return true, nil
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return true, fmt.Errorf("failed to decode updated %s: %w", table, err)
	}

	return true, nil
}

// Count returns the exact number of rows matching q.
func (c *Client) Count(ctx context.Context, table string, q Query) (int64, error) {
	if q.Limit == 0 {
		q.Limit = 1
	}

	resp, err := c.request(ctx).
		SetHeader("Prefer", "count=exact").
		SetQueryParamsFromValues(q.Values()).
		Get(table)
	if err != nil {
		return 0, c.transportErr(http.MethodGet, table, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusPartialContent:
	default:
		return 0, c.statusErr(http.MethodGet, table, resp)
	}

	n, err := parseContentRange(resp.Header().Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	return n, nil
}

// Ping issues the smallest meaningful read against the devices table.
func (c *Client) Ping(ctx context.Context) error {
	var rows []json.RawMessage
	return c.Select(ctx, "devices", Query{Select: "device_id,name", Limit: 1}, &rows)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
}

func (c *Client) transportErr(method, table string, err error) error {
	c.log.Warn("backend request failed",
		slog.String("method", method),
		slog.String("table", table),
		sl.Err(err),
	)
	return fmt.Errorf("failed to execute request: %w", err)
}

func (c *Client) statusErr(method, table string, resp *resty.Response) error {
	c.log.Warn("backend returned error status",
		slog.String("method", method),
		slog.String("table", table),
		slog.Int("status", resp.StatusCode()),
		slog.String("request_id", resp.Request.Header.Get("X-Request-Id")),
		slog.String("body", resp.String()),
	)
	return &StatusError{
		Method: method,
		Table:  table,
		Code:   resp.StatusCode(),
		Body:   resp.String(),
	}
}
