package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"order-forecast-api/pkg/models"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the Airtable REST endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// Record is one row of a table: its opaque id plus a loosely typed field map.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type createRequest struct {
	Records []createRecord `json:"records"`
}

type createRecord struct {
	Fields map[string]interface{} `json:"fields"`
}

type updateRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

// Observer is notified once per logical call (after retries) with its outcome.
type Observer func(op, table string, err error)

// Client talks to one Airtable base.
type Client struct {
	baseURL        string
	baseID         string
	token          string
	httpClient     *http.Client
	maxRetries     uint64
	initialBackoff time.Duration
	observer       Observer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests point it at httptest servers).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRetry sets how often 429/5xx responses and transport failures are retried.
func WithRetry(maxRetries uint64, initialBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
	}
}

// WithObserver registers a callback for request outcomes.
func WithObserver(observer Observer) Option {
	return func(c *Client) { c.observer = observer }
}

// NewClient creates a client for the base identified by baseID.
func NewClient(baseID, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		baseID:  baseID,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		maxRetries:     3,
		initialBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll reads every record of table, following offset pagination.
func (c *Client) FetchAll(ctx context.Context, table string) ([]Record, error) {
	return c.FetchView(ctx, table, "")
}

// FetchView is FetchAll restricted to (and ordered by) a named view.
func (c *Client) FetchView(ctx context.Context, table, view string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		params := url.Values{}
		if view != "" {
			params.Set("view", view)
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		endpoint := c.tableURL(table)
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		var page listResponse
		if err := c.do(ctx, "fetch", table, http.MethodGet, endpoint, nil, &page); err != nil {
			c.observe("fetch", table, err)
			return nil, err
		}
		all = append(all, page.Records...)

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}
	c.observe("fetch", table, nil)
	return all, nil
}

// Create inserts a record and returns it with its new id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]interface{}) (*Record, error) {
	payload := createRequest{Records: []createRecord{{Fields: fields}}}
	var created listResponse
	err := c.do(ctx, "create", table, http.MethodPost, c.tableURL(table), payload, &created)
	if err == nil && len(created.Records) == 0 {
		err = &models.DataFetchError{Op: "create", Table: table, Err: errors.New("empty create response")}
	}
	c.observe("create", table, err)
	if err != nil {
		return nil, err
	}
	return &created.Records[0], nil
}

// Update patches the given fields of one record.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]interface{}) (*Record, error) {
	endpoint := c.tableURL(table) + "/" + url.PathEscape(id)
	var updated Record
	err := c.do(ctx, "update", table, http.MethodPatch, endpoint, updateRequest{Fields: fields}, &updated)
	c.observe("update", table, err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

func (c *Client) observe(op, table string, err error) {
	if c.observer != nil {
		c.observer(op, table, err)
	}
}

// do performs one logical call, retrying rate limits, server errors and
// transport failures. Every returned error is a *models.DataFetchError.
func (c *Client) do(ctx context.Context, op, table, method, endpoint string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &models.DataFetchError{Op: op, Table: table, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return backoff.Permanent(&models.DataFetchError{Op: op, Table: table, Err: err})
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &models.DataFetchError{Op: op, Table: table, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &models.DataFetchError{Op: op, Table: table, Err: fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			fetchErr := &models.DataFetchError{Op: op, Table: table, StatusCode: resp.StatusCode, Body: string(data)}
			if retryable(resp.StatusCode) {
				return fetchErr
			}
			return backoff.Permanent(fetchErr)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(&models.DataFetchError{Op: op, Table: table, Err: fmt.Errorf("decode response: %w", err)})
			}
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err == nil {
		return nil
	}
	var fetchErr *models.DataFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &models.DataFetchError{Op: op, Table: table, Err: err}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
