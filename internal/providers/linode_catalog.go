package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// ListDatacenters returns all datacenters.
func (p *LinodeProvider) ListDatacenters(ctx context.Context) ([]domain.Datacenter, error) {
	out, err := list(ctx, p, "avail.datacenters", nil, linodeapi.DecodeDatacenters)
	if err != nil {
		return nil, fmt.Errorf("failed to list datacenters: %w", err)
	}
	return out, nil
}

// ListPlans returns all plans with their disk allowance in MB.
func (p *LinodeProvider) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	out, err := list(ctx, p, "avail.linodeplans", nil, linodeapi.DecodePlans)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return out, nil
}

// ListDistributions returns all distributions.
func (p *LinodeProvider) ListDistributions(ctx context.Context) ([]domain.Distribution, error) {
	out, err := list(ctx, p, "avail.distributions", nil, linodeapi.DecodeDistributions)
	if err != nil {
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}
	return out, nil
}

// ListKernels returns all kernels.
func (p *LinodeProvider) ListKernels(ctx context.Context) ([]domain.Kernel, error) {
	out, err := list(ctx, p, "avail.kernels", nil, linodeapi.DecodeKernels)
	if err != nil {
		return nil, fmt.Errorf("failed to list kernels: %w", err)
	}
	return out, nil
}
