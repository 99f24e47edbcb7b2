package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// ListIPs returns the addresses assigned to a Linode.
func (p *LinodeProvider) ListIPs(ctx context.Context, linodeID int64) ([]domain.IPAddress, error) {
	ips, err := list(ctx, p, "linode.ip.list", linodeapi.Params{"LinodeID": linodeID}, linodeapi.DecodeIPs)
	if err != nil {
		return nil, fmt.Errorf("failed to list ips for linode %d: %w", linodeID, err)
	}
	return ips, nil
}

// PublicIP returns the first public address of a Linode.
func (p *LinodeProvider) PublicIP(ctx context.Context, linodeID int64) (*domain.IPAddress, error) {
	return p.firstIP(ctx, linodeID, true)
}

// PrivateIP returns the first private address of a Linode.
func (p *LinodeProvider) PrivateIP(ctx context.Context, linodeID int64) (*domain.IPAddress, error) {
	return p.firstIP(ctx, linodeID, false)
}

func (p *LinodeProvider) firstIP(ctx context.Context, linodeID int64, public bool) (*domain.IPAddress, error) {
	ips, err := p.ListIPs(ctx, linodeID)
	if err != nil {
		return nil, err
	}
	for i := range ips {
		if ips[i].Public == public {
			return &ips[i], nil
		}
	}
	kind := "private"
	if public {
		kind = "public"
	}
	return nil, fmt.Errorf("%s ip for linode %d: %w", kind, linodeID, domain.ErrNotFound)
}

// AddPrivateIP assigns a private address to a Linode and returns it.
func (p *LinodeProvider) AddPrivateIP(ctx context.Context, linodeID int64) (*domain.IPAddress, error) {
	res, err := p.call(ctx, "linode.ip.addprivate", linodeapi.Params{"LinodeID": linodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to add private ip to linode %d: %w", linodeID, err)
	}

	ips, err := list(ctx, p, "linode.ip.list",
		linodeapi.Params{"LinodeID": linodeID, "IPAddressID": res.IPAddressID}, linodeapi.DecodeIPs)
	if err != nil {
		return nil, fmt.Errorf("failed to read back ip %d: %w", res.IPAddressID, err)
	}
	for i := range ips {
		if ips[i].ID == res.IPAddressID {
			return &ips[i], nil
		}
	}
	return nil, fmt.Errorf("ip %d added to linode %d is missing from the ip list: %w",
		res.IPAddressID, linodeID, domain.ErrIntegrity)
}
