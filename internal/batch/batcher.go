// Package batch folds several independent API actions into a single
// round trip.
package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// Transport sends a batch and returns one envelope per request, in request
// order. *linodeapi.Client satisfies it.
type Transport interface {
	CallBatch(ctx context.Context, requests []linodeapi.Request) ([]linodeapi.Envelope, error)
}

// Result is the outcome of one position in a batch. Exactly one of Data
// and Err is meaningful: Err is non-nil when the API reported an error for
// this position.
type Result struct {
	Action string
	Data   json.RawMessage
	Err    error
}

// NotFound reports whether the position succeeded but matched no records.
func (r Result) NotFound() bool {
	return r.Err == nil && linodeapi.IsEmpty(r.Data)
}

// Batcher buffers actions until Execute sends them together. A Batcher is
// not safe for concurrent use.
type Batcher struct {
	transport Transport
	pending   []linodeapi.Request
}

// New creates an empty Batcher that sends through t.
func New(t Transport) *Batcher {
	return &Batcher{transport: t}
}

// Add appends an action to the batch. Nothing is sent until Execute.
func (b *Batcher) Add(action string, params linodeapi.Params) {
	b.pending = append(b.pending, linodeapi.Request{Action: action, Params: params})
}

// Len returns the number of buffered actions.
func (b *Batcher) Len() int {
	return len(b.pending)
}

// Execute sends every buffered action in one transport call and returns
// one Result per action, in the order they were added. The buffer is
// consumed even if the call fails. An empty batch returns no results and
// makes no call.
//
// Errors the API reports for a single position are attached to that
// position's Result. Only transport failures and malformed responses fail
// the whole batch.
func (b *Batcher) Execute(ctx context.Context) ([]Result, error) {
	requests := b.pending
	b.pending = nil

	if len(requests) == 0 {
		return nil, nil
	}

	envelopes, err := b.transport.CallBatch(ctx, requests)
	if err != nil {
		return nil, err
	}
	if len(envelopes) != len(requests) {
		return nil, fmt.Errorf("batch: sent %d actions, got %d results: %w",
			len(requests), len(envelopes), domain.ErrIntegrity)
	}

	results := make([]Result, len(requests))
	for i, env := range envelopes {
		action := requests[i].Action
		results[i] = Result{Action: action}
		if err := env.Err(action); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Data = env.Data
	}
	return results, nil
}
