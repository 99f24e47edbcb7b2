// Package providers wraps the Linode API actions as typed calls. Actions
// that start a job return a *job.Handle.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// LinodeProvider performs Linode API actions.
type LinodeProvider struct {
	client *linodeapi.Client
	poller *job.Poller
	logger *slog.Logger
}

// Option configures a LinodeProvider.
type Option func(*providerOptions)

type providerOptions struct {
	pollerOpts []job.Option
	logger     *slog.Logger
}

// WithPollerOptions configures the poller behind every returned handle.
func WithPollerOptions(opts ...job.Option) Option {
	return func(o *providerOptions) { o.pollerOpts = append(o.pollerOpts, opts...) }
}

// WithLogger sets the logger for the provider and its poller.
func WithLogger(l *slog.Logger) Option {
	return func(o *providerOptions) { o.logger = l }
}

// NewLinodeProvider creates a provider over client.
func NewLinodeProvider(client *linodeapi.Client, opts ...Option) *LinodeProvider {
	o := providerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	pollerOpts := append([]job.Option{job.WithLogger(o.logger)}, o.pollerOpts...)
	return &LinodeProvider{
		client: client,
		poller: job.NewPoller(client, pollerOpts...),
		logger: o.logger,
	}
}

func (p *LinodeProvider) GetDisplayName() string {
	return "Linode"
}

// Poller returns the poller used for this provider's job handles.
func (p *LinodeProvider) Poller() *job.Poller {
	return p.poller
}

// Job returns a handle for an existing job, e.g. one read from the journal.
func (p *LinodeProvider) Job(j domain.Job) *job.Handle {
	return job.FromSnapshot(p.poller, j)
}

// call performs action and decodes its identifiers.
func (p *LinodeProvider) call(ctx context.Context, action string, params linodeapi.Params) (linodeapi.ActionResult, error) {
	data, err := p.client.Call(ctx, action, params)
	if err != nil {
		return linodeapi.ActionResult{}, err
	}
	return linodeapi.DecodeActionResult(data)
}

// list performs a list action and decodes its payload with decode.
func list[T any](ctx context.Context, p *LinodeProvider, action string, params linodeapi.Params, decode func(json.RawMessage) ([]T, error)) ([]T, error) {
	data, err := p.client.Call(ctx, action, params)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// handle turns an action result into a job handle. It fails if the API
// returned no job for an action that is documented to start one.
func (p *LinodeProvider) handle(action string, linodeID int64, res linodeapi.ActionResult) (*job.Handle, error) {
	if !res.HasJob {
		return nil, fmt.Errorf("%s: no job id in response: %w", action, domain.ErrIntegrity)
	}
	p.logger.Debug("job issued", "action", action, "linode_id", linodeID, "job_id", res.JobID)
	return job.FromSnapshot(p.poller, domain.Job{ID: res.JobID, LinodeID: linodeID, Action: action}), nil
}
