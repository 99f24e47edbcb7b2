package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// ListLinodes returns every Linode on the account.
func (p *LinodeProvider) ListLinodes(ctx context.Context) ([]domain.Linode, error) {
	linodes, err := list(ctx, p, "linode.list", nil, linodeapi.DecodeLinodes)
	if err != nil {
		return nil, fmt.Errorf("failed to list linodes: %w", err)
	}
	return linodes, nil
}

// GetLinode returns a single Linode. A Linode the API does not return is
// reported as domain.ErrNotFound.
func (p *LinodeProvider) GetLinode(ctx context.Context, id int64) (*domain.Linode, error) {
	linodes, err := list(ctx, p, "linode.list", linodeapi.Params{"LinodeID": id}, linodeapi.DecodeLinodes)
	if err != nil {
		return nil, fmt.Errorf("failed to get linode %d: %w", id, err)
	}
	for i := range linodes {
		if linodes[i].ID == id {
			return &linodes[i], nil
		}
	}
	return nil, fmt.Errorf("linode %d: %w", id, domain.ErrNotFound)
}

// CreateLinode creates an empty Linode. The record exists as soon as the
// call returns; it has no disks and is not running.
//
// If the new Linode cannot be read back, the error is returned together
// with a Linode carrying only the new ID, so the caller can still remove it.
func (p *LinodeProvider) CreateLinode(ctx context.Context, datacenterID, planID int64, paymentTerm int) (*domain.Linode, error) {
	res, err := p.call(ctx, "linode.create", linodeapi.Params{
		"DatacenterID": datacenterID,
		"PlanID":       planID,
		"PaymentTerm":  paymentTerm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create linode: %w", err)
	}
	if res.LinodeID == 0 {
		return nil, fmt.Errorf("linode.create: no LinodeID in response: %w", domain.ErrIntegrity)
	}
	l, err := p.GetLinode(ctx, res.LinodeID)
	if err != nil {
		return &domain.Linode{ID: res.LinodeID, DatacenterID: datacenterID, PlanID: planID}, err
	}
	return l, nil
}

// CloneLinode copies an existing Linode into a new one.
func (p *LinodeProvider) CloneLinode(ctx context.Context, sourceID, datacenterID, planID int64, paymentTerm int) (*domain.Linode, error) {
	res, err := p.call(ctx, "linode.clone", linodeapi.Params{
		"LinodeID":     sourceID,
		"DatacenterID": datacenterID,
		"PlanID":       planID,
		"PaymentTerm":  paymentTerm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone linode %d: %w", sourceID, err)
	}
	if res.LinodeID == 0 {
		return nil, fmt.Errorf("linode.clone: no LinodeID in response: %w", domain.ErrIntegrity)
	}
	return p.GetLinode(ctx, res.LinodeID)
}

// UpdateLinode sets the label of a Linode.
func (p *LinodeProvider) UpdateLinode(ctx context.Context, id int64, label string) error {
	_, err := p.client.Call(ctx, "linode.update", linodeapi.Params{
		"LinodeID": id,
		"Label":    label,
	})
	if err != nil {
		return fmt.Errorf("failed to update linode %d: %w", id, err)
	}
	return nil
}

// DeleteLinode removes a Linode. Without skipChecks the API refuses to
// delete a Linode that still has disks.
func (p *LinodeProvider) DeleteLinode(ctx context.Context, id int64, skipChecks bool) error {
	_, err := p.client.Call(ctx, "linode.delete", linodeapi.Params{
		"LinodeID":   id,
		"skipChecks": skipChecks,
	})
	if err != nil {
		return fmt.Errorf("failed to delete linode %d: %w", id, err)
	}
	return nil
}

// BootLinode boots a Linode. A zero configID lets the API pick the last
// used profile.
func (p *LinodeProvider) BootLinode(ctx context.Context, id, configID int64) (*job.Handle, error) {
	return p.power(ctx, "linode.boot", id, configID)
}

// RebootLinode reboots a Linode.
func (p *LinodeProvider) RebootLinode(ctx context.Context, id, configID int64) (*job.Handle, error) {
	return p.power(ctx, "linode.reboot", id, configID)
}

// ShutdownLinode powers a Linode off.
func (p *LinodeProvider) ShutdownLinode(ctx context.Context, id int64) (*job.Handle, error) {
	return p.power(ctx, "linode.shutdown", id, 0)
}

func (p *LinodeProvider) power(ctx context.Context, action string, id, configID int64) (*job.Handle, error) {
	params := linodeapi.Params{"LinodeID": id}
	if configID != 0 {
		params["ConfigID"] = configID
	}
	res, err := p.call(ctx, action, params)
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", action, id, err)
	}
	return p.handle(action, id, res)
}

// ResizeLinode moves a Linode to another plan. The API returns no job for
// this action, so it completes from the caller's point of view as soon as
// the call returns.
func (p *LinodeProvider) ResizeLinode(ctx context.Context, id, planID int64) error {
	_, err := p.client.Call(ctx, "linode.resize", linodeapi.Params{
		"LinodeID": id,
		"PlanID":   planID,
	})
	if err != nil {
		return fmt.Errorf("failed to resize linode %d: %w", id, err)
	}
	return nil
}

// ListJobs returns the jobs of a Linode, optionally only pending ones.
func (p *LinodeProvider) ListJobs(ctx context.Context, linodeID int64, pendingOnly bool) ([]domain.Job, error) {
	params := linodeapi.Params{"LinodeID": linodeID}
	if pendingOnly {
		params["pendingOnly"] = 1
	}
	jobs, err := list(ctx, p, "linode.job.list", params, linodeapi.DecodeJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for linode %d: %w", linodeID, err)
	}
	return jobs, nil
}
