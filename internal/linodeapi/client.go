// Package linodeapi is the HTTP transport for the Linode v3 API.
//
// Every call is a POST of form fields to a single endpoint, selected by the
// api_action field. Responses share one envelope shape:
//
//	{"ACTION": "linode.list", "ERRORARRAY": [], "DATA": ...}
//
// A batch call bundles several actions into one request and returns one
// envelope per action, in request order.
package linodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/retry"
)

const (
	defaultEndpoint = "https://api.linode.com/"
	requestTimeout  = 30 * time.Second

	batchAction = "batch"
)

// Params holds the arguments of one action. String values are sent as-is;
// everything else is JSON encoded.
type Params map[string]any

// Request is one action inside a batch.
type Request struct {
	Action string
	Params Params
}

// ErrorEntry is one element of an envelope's ERRORARRAY.
type ErrorEntry struct {
	Code    int    `json:"ERRORCODE"`
	Message string `json:"ERRORMESSAGE"`
}

// Envelope is the response wrapper shared by every action.
type Envelope struct {
	Action string          `json:"ACTION"`
	Errors []ErrorEntry    `json:"ERRORARRAY"`
	Data   json.RawMessage `json:"DATA"`
}

// Err returns the first error reported in the envelope as an
// *domain.APIError, or nil.
func (e Envelope) Err(action string) error {
	if len(e.Errors) == 0 {
		return nil
	}
	if e.Action != "" {
		action = e.Action
	}
	first := e.Errors[0]
	return &domain.APIError{
		Action:  action,
		Code:    first.Code,
		Message: first.Message,
		Kind:    classify(first.Code),
	}
}

// classify maps Linode API error codes onto the shared sentinels.
func classify(code int) error {
	switch code {
	case 4, 13:
		return domain.ErrUnauthorized
	case 5:
		return domain.ErrNotFound
	case 14, 40:
		return domain.ErrRateLimited
	case 8, 41:
		return domain.ErrConflict
	}
	return nil
}

// Client performs calls against the Linode API.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
	retry    retry.Config
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at a different base URL. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRetry overrides the retry policy for transient transport failures.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a Client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: requestTimeout},
		retry:    retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs a single action and returns its DATA payload. Errors the
// API reports are returned as *domain.APIError; network and HTTP failures
// as *domain.TransportError.
func (c *Client) Call(ctx context.Context, action string, params Params) (json.RawMessage, error) {
	form, err := c.form(action, params)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := c.post(ctx, action, form, &env); err != nil {
		return nil, err
	}
	if err := env.Err(action); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CallBatch sends all requests as one batch call and returns one envelope
// per request, in request order. Per-envelope errors are left for the
// caller to interpret. An empty request list makes no network call.
func (c *Client) CallBatch(ctx context.Context, requests []Request) ([]Envelope, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	calls := make([]map[string]any, 0, len(requests))
	for _, r := range requests {
		call := make(map[string]any, len(r.Params)+1)
		for k, v := range r.Params {
			call[k] = v
		}
		call["api_action"] = r.Action
		calls = append(calls, call)
	}

	payload, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("linodeapi: failed to encode batch: %w", err)
	}

	form, err := c.form(batchAction, Params{"api_requestArray": string(payload)})
	if err != nil {
		return nil, err
	}

	var envelopes []Envelope
	if err := c.post(ctx, batchAction, form, &envelopes); err != nil {
		return nil, err
	}
	return envelopes, nil
}

// form builds the request body for one action.
func (c *Client) form(action string, params Params) (url.Values, error) {
	values := url.Values{}
	for name, value := range params {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			values.Set(name, s)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("linodeapi: failed to encode %s for %s: %w", name, action, err)
		}
		values.Set(name, string(encoded))
	}
	values.Set("api_action", action)
	values.Set("api_key", c.apiKey)
	return values, nil
}

// post sends the form and decodes the JSON response into out, retrying
// transient transport failures.
func (c *Client) post(ctx context.Context, action string, form url.Values, out any) error {
	body := form.Encode()

	return retry.Do(ctx, c.retry, isRetryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
		if err != nil {
			return &domain.TransportError{Action: action, Err: err}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return &domain.TransportError{Action: action, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &domain.TransportError{Action: action, StatusCode: resp.StatusCode, Err: domain.ErrRateLimited}
		case resp.StatusCode != http.StatusOK:
			return &domain.TransportError{Action: action, StatusCode: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.TransportError{Action: action, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		return nil
	})
}

// isRetryable retries server-side HTTP failures and transient network
// errors. Rate limiting is never retried so it does not compound.
func isRetryable(err error) bool {
	var te *domain.TransportError
	if !errors.As(err, &te) {
		return false
	}
	if errors.Is(te.Err, domain.ErrRateLimited) {
		return false
	}
	if te.StatusCode >= 500 {
		return true
	}
	return retry.IsRetryable(te.Err)
}
