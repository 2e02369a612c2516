// Package client talks to the stamp rally HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/stamps"
)

// DefaultServer is the API base URL used when none is configured.
const DefaultServer = "http://localhost:3002/api"

// APIError is a failure response from the server.
type APIError struct {
	StatusCode int
	Errors     []FieldMessage
}

// FieldMessage is one entry of a failure response. Field is empty for
// errors that are not tied to an input.
type FieldMessage struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	msgs := make([]string, len(e.Errors))
	for i, m := range e.Errors {
		if m.Field != "" {
			msgs[i] = m.Field + ": " + m.Message
		} else {
			msgs[i] = m.Message
		}
	}
	return strings.Join(msgs, "; ")
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client is a JSON client for the API. The zero value is not usable.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	maxTries uint
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxTries sets how many times a GET is attempted.
func WithMaxTries(n uint) Option {
	return func(c *Client) { c.maxTries = max(n, 1) }
}

// New creates a client for the API rooted at baseURL, e.g. "http://host:3002/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		maxTries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Health is the server's liveness report.
type Health struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// ScanResult is the server's decision on a scan. Rejections are results,
// not errors.
type ScanResult struct {
	Outcome    stamps.Status      `json:"outcome"`
	Stamp      *models.UserStamp  `json:"stamp,omitempty"`
	Point      *models.StampPoint `json:"point,omitempty"`
	DistanceKm *float64           `json:"distanceKm,omitempty"`
	Errors     []FieldMessage     `json:"errors,omitempty"`
}

// Accepted reports whether the scan earned a stamp.
func (r ScanResult) Accepted() bool {
	return r.Outcome == stamps.Accepted
}

// Message returns the server's explanation of a rejection.
func (r ScanResult) Message() string {
	if len(r.Errors) == 0 {
		return r.Outcome.String()
	}
	return r.Errors[0].Message
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.call(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	var res AuthResult
	err := c.call(ctx, http.MethodPost, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var res AuthResult
	err := c.call(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

// Points returns the catalog annotated with the caller's completion state.
func (c *Client) Points(ctx context.Context) ([]models.PointStatus, error) {
	var res struct {
		Points []models.PointStatus `json:"points"`
	}
	err := c.call(ctx, http.MethodGet, "/stamps", nil, &res)
	return res.Points, err
}

// Collected returns the caller's stamps in collection order.
func (c *Client) Collected(ctx context.Context) ([]models.UserStamp, error) {
	var res struct {
		Stamps []models.UserStamp `json:"stamps"`
	}
	err := c.call(ctx, http.MethodGet, "/stamps/collected", nil, &res)
	return res.Stamps, err
}

func (c *Client) Progress(ctx context.Context) (models.Progress, error) {
	var res struct {
		Progress models.Progress `json:"progress"`
	}
	err := c.call(ctx, http.MethodGet, "/stamps/progress", nil, &res)
	return res.Progress, err
}

// Scan submits a QR payload with an optional position.
func (c *Client) Scan(ctx context.Context, qrCode string, pos *models.Location) (ScanResult, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/stamps/scan", map[string]any{
		"qrCode":   qrCode,
		"location": pos,
	})
	if err != nil {
		return ScanResult{}, err
	}

	var res struct {
		ScanResult
		Outcome *stamps.Status `json:"outcome"`
	}
	if json.Unmarshal(body, &res) == nil && res.Outcome != nil {
		res.ScanResult.Outcome = *res.Outcome
		return res.ScanResult, nil
	}
	return ScanResult{}, decodeError(status, body)
}

// call sends a request and decodes a successful response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	status, body, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return decodeError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// send performs a request. GETs are retried with exponential backoff on
// transport errors and 502/503/504; a final gateway failure is an *APIError.
func (c *Client) send(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
	}

	tries := c.maxTries
	if method != http.MethodGet {
		tries = 1
	}

	type response struct {
		status int
		body   []byte
	}
	op := func() (response, error) {
		status, body, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, backoff.Permanent(err)
			}
			return response{}, err
		}
		switch status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return response{status, body}, decodeError(status, body)
		}
		return response{status, body}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	res, err := backoff.Retry(ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
	if err != nil {
		return 0, nil, err
	}
	return res.status, res.body, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return resp.StatusCode, data, nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var res struct {
		Errors []FieldMessage `json:"errors"`
	}
	if json.Unmarshal(body, &res) == nil {
		apiErr.Errors = res.Errors
	}
	return apiErr
}
