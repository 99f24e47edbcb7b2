package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for cross-package error classification. Lower layers wrap
// these so callers can branch on error categories with errors.Is.
//
//	return fmt.Errorf("datacenter %q: %w", query, domain.ErrNotFound)
var (
	// ErrNotFound indicates a lookup yielded no match.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state or validation conflict, such as
	// deleting a Linode that still has disks.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity indicates the API contradicted itself, e.g. a created
	// disk that does not appear in the disk list, or a batch response with
	// the wrong number of elements.
	ErrIntegrity = errors.New("inconsistent api response")

	// ErrTimeout indicates a wait gave up before the job finished. The
	// remote job keeps running.
	ErrTimeout = errors.New("timed out waiting for job")
)

// TransportError is a network or HTTP-layer failure. It is never produced
// for errors the API itself reports.
type TransportError struct {
	Action     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: unexpected HTTP status %d", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an error the API reported in its response envelope.
type APIError struct {
	Action  string
	Code    int
	Message string

	// Kind is one of the sentinel errors above when the code maps onto
	// one, nil otherwise.
	Kind error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s: %s (code %d)", e.Action, e.Message, e.Code)
}

func (e *APIError) Unwrap() error { return e.Kind }

// JobFailedError reports a job that finished with success = false. Job is
// the terminal snapshot.
type JobFailedError struct {
	Job Job
}

func (e *JobFailedError) Error() string {
	msg := e.Job.Message
	if msg == "" {
		msg = "no message"
	}
	if e.Job.Duration != nil {
		return fmt.Sprintf("job %d (%s) failed after %s: %s",
			e.Job.ID, e.Job.Action, time.Duration(*e.Job.Duration)*time.Second, msg)
	}
	return fmt.Sprintf("job %d (%s) failed: %s", e.Job.ID, e.Job.Action, msg)
}
