package linodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/retry"

	"github.com/google/go-cmp/cmp"
)

// --- Test helpers ---

// newTestClient creates a Client pointed at the given test server with
// retries disabled.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient("test-key", WithEndpoint(serverURL), WithRetry(retry.NoRetry()))
}

// newAPIServer creates an httptest.Server that decodes the form and passes
// it to handler, encoding whatever handler returns as JSON.
func newAPIServer(t *testing.T, handler func(r *http.Request) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(handler(r)); err != nil {
			t.Errorf("failed to encode test response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func success(action string, data any) map[string]any {
	return map[string]any{"ACTION": action, "ERRORARRAY": []any{}, "DATA": data}
}

func failure(action string, code int, message string) map[string]any {
	return map[string]any{
		"ACTION":     action,
		"ERRORARRAY": []any{map[string]any{"ERRORCODE": code, "ERRORMESSAGE": message}},
		"DATA":       map[string]any{},
	}
}

// --- Call tests ---

func TestCall_SendsFormAndReturnsData(t *testing.T) {
	var got map[string]string
	srv := newAPIServer(t, func(r *http.Request) any {
		got = map[string]string{
			"api_key":    r.PostForm.Get("api_key"),
			"api_action": r.PostForm.Get("api_action"),
			"LinodeID":   r.PostForm.Get("LinodeID"),
			"Label":      r.PostForm.Get("Label"),
			"skipChecks": r.PostForm.Get("skipChecks"),
		}
		return success("linode.delete", map[string]any{"LinodeID": 42})
	})
	c := newTestClient(t, srv.URL)

	data, err := c.Call(context.Background(), "linode.delete", Params{
		"LinodeID":   42,
		"Label":      "web 1",
		"skipChecks": true,
		"Ignored":    nil,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := map[string]string{
		"api_key":    "test-key",
		"api_action": "linode.delete",
		"LinodeID":   "42",
		"Label":      "web 1",
		"skipChecks": "true",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("form mismatch (-want +got):\n%s", diff)
	}

	res, err := DecodeActionResult(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.LinodeID != 42 {
		t.Errorf("expected LinodeID 42, got %d", res.LinodeID)
	}
	if res.HasJob {
		t.Error("expected no job in result")
	}
}

func TestCall_APIErrorIsClassified(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{4, domain.ErrUnauthorized},
		{5, domain.ErrNotFound},
		{14, domain.ErrRateLimited},
		{41, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.want.Error(), func(t *testing.T) {
			srv := newAPIServer(t, func(r *http.Request) any {
				return failure("linode.list", tt.code, "nope")
			})
			c := newTestClient(t, srv.URL)

			_, err := c.Call(context.Background(), "linode.list", nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *domain.APIError, got %T", err)
			}
			if apiErr.Code != tt.code || apiErr.Message != "nope" {
				t.Errorf("unexpected api error: %+v", apiErr)
			}
		})
	}
}

func TestCall_FirstErrorWins(t *testing.T) {
	srv := newAPIServer(t, func(r *http.Request) any {
		return map[string]any{
			"ACTION": "linode.create",
			"ERRORARRAY": []any{
				map[string]any{"ERRORCODE": 6, "ERRORMESSAGE": "first"},
				map[string]any{"ERRORCODE": 7, "ERRORMESSAGE": "second"},
			},
		}
	})
	c := newTestClient(t, srv.URL)

	_, err := c.Call(context.Background(), "linode.create", nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *domain.APIError, got %v", err)
	}
	if apiErr.Message != "first" {
		t.Errorf("expected first error, got %q", apiErr.Message)
	}
}

func TestCall_HTTPStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	_, err := c.Call(context.Background(), "linode.list", nil)
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *domain.TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", te.StatusCode)
	}
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(success("linode.list", []any{}))
	}))
	t.Cleanup(srv.Close)
	c := NewClient("k", WithEndpoint(srv.URL), WithRetry(retry.Config{MaxAttempts: 3}))

	if _, err := c.Call(context.Background(), "linode.list", nil); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestCall_RateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("k", WithEndpoint(srv.URL), WithRetry(retry.Config{MaxAttempts: 3}))

	_, err := c.Call(context.Background(), "linode.list", nil)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

// --- CallBatch tests ---

func TestCallBatch_EncodesRequestArray(t *testing.T) {
	var action string
	var requestArray []map[string]any
	srv := newAPIServer(t, func(r *http.Request) any {
		action = r.PostForm.Get("api_action")
		if err := json.Unmarshal([]byte(r.PostForm.Get("api_requestArray")), &requestArray); err != nil {
			t.Errorf("invalid api_requestArray: %v", err)
		}
		return []any{
			success("linode.job.list", []any{}),
			failure("linode.job.list", 5, "missing"),
		}
	})
	c := newTestClient(t, srv.URL)

	envs, err := c.CallBatch(context.Background(), []Request{
		{Action: "linode.job.list", Params: Params{"LinodeID": 1, "JobID": 10}},
		{Action: "linode.job.list", Params: Params{"LinodeID": 1, "JobID": 11}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if action != "batch" {
		t.Errorf("expected api_action=batch, got %q", action)
	}
	wantArray := []map[string]any{
		{"api_action": "linode.job.list", "LinodeID": float64(1), "JobID": float64(10)},
		{"api_action": "linode.job.list", "LinodeID": float64(1), "JobID": float64(11)},
	}
	if diff := cmp.Diff(wantArray, requestArray); diff != "" {
		t.Errorf("request array mismatch (-want +got):\n%s", diff)
	}

	if len(envs) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(envs))
	}
	if err := envs[0].Err("linode.job.list"); err != nil {
		t.Errorf("expected first envelope to succeed, got %v", err)
	}
	if err := envs[1].Err("linode.job.list"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected second envelope ErrNotFound, got %v", err)
	}
}

func TestCallBatch_EmptyMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	envs, err := c.CallBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(envs) != 0 {
		t.Errorf("expected no envelopes, got %d", len(envs))
	}
	if calls.Load() != 0 {
		t.Errorf("expected no HTTP calls, got %d", calls.Load())
	}
}
