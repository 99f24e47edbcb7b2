package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// ListDisks returns the disks of a Linode.
func (p *LinodeProvider) ListDisks(ctx context.Context, linodeID int64) ([]domain.Disk, error) {
	disks, err := list(ctx, p, "linode.disk.list", linodeapi.Params{"LinodeID": linodeID}, linodeapi.DecodeDisks)
	if err != nil {
		return nil, fmt.Errorf("failed to list disks for linode %d: %w", linodeID, err)
	}
	return disks, nil
}

// CreateDiskFromDistribution deploys a distribution image onto a new disk.
// The disk is usable once the returned job finishes.
func (p *LinodeProvider) CreateDiskFromDistribution(ctx context.Context, linodeID, distributionID int64, label string, sizeMB int, rootPass string) (*domain.Disk, *job.Handle, error) {
	return p.createDisk(ctx, "linode.disk.createfromdistribution", linodeID, linodeapi.Params{
		"LinodeID":       linodeID,
		"DistributionID": distributionID,
		"Label":          label,
		"Size":           sizeMB,
		"rootPass":       rootPass,
	})
}

// CreateSwapDisk creates a swap disk. An empty label defaults to
// "<size>MB Swap Image".
func (p *LinodeProvider) CreateSwapDisk(ctx context.Context, linodeID int64, sizeMB int, label string) (*domain.Disk, *job.Handle, error) {
	if label == "" {
		label = SwapLabel(sizeMB)
	}
	return p.createDisk(ctx, "linode.disk.create", linodeID, linodeapi.Params{
		"LinodeID": linodeID,
		"Label":    label,
		"Type":     "swap",
		"Size":     sizeMB,
	})
}

// SwapLabel is the default label of a swap disk.
func SwapLabel(sizeMB int) string {
	return fmt.Sprintf("%dMB Swap Image", sizeMB)
}

// createDisk issues a disk creation and reads the new disk back from the
// disk list. A disk missing from the list means the API contradicted its
// own response.
func (p *LinodeProvider) createDisk(ctx context.Context, action string, linodeID int64, params linodeapi.Params) (*domain.Disk, *job.Handle, error) {
	res, err := p.call(ctx, action, params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s on linode %d: %w", action, linodeID, err)
	}
	h, err := p.handle(action, linodeID, res)
	if err != nil {
		return nil, nil, err
	}

	disks, err := p.ListDisks(ctx, linodeID)
	if err != nil {
		return nil, h, err
	}
	for i := range disks {
		if disks[i].ID == res.DiskID {
			return &disks[i], h, nil
		}
	}
	return nil, h, fmt.Errorf("disk %d created on linode %d is missing from the disk list: %w",
		res.DiskID, linodeID, domain.ErrIntegrity)
}

// ResizeDisk changes the size of a disk.
func (p *LinodeProvider) ResizeDisk(ctx context.Context, linodeID, diskID int64, sizeMB int) (*job.Handle, error) {
	res, err := p.call(ctx, "linode.disk.resize", linodeapi.Params{
		"LinodeID": linodeID,
		"DiskID":   diskID,
		"size":     sizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resize disk %d: %w", diskID, err)
	}
	return p.handle("linode.disk.resize", linodeID, res)
}

// DeleteDisk removes a disk.
func (p *LinodeProvider) DeleteDisk(ctx context.Context, linodeID, diskID int64) (*job.Handle, error) {
	res, err := p.call(ctx, "linode.disk.delete", linodeapi.Params{
		"LinodeID": linodeID,
		"DiskID":   diskID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete disk %d: %w", diskID, err)
	}
	return p.handle("linode.disk.delete", linodeID, res)
}

// UpdateDisk changes the label and read-only flag of a disk.
func (p *LinodeProvider) UpdateDisk(ctx context.Context, d domain.Disk) error {
	_, err := p.client.Call(ctx, "linode.disk.update", linodeapi.Params{
		"LinodeID":   d.LinodeID,
		"DiskID":     d.ID,
		"Label":      d.Label,
		"isReadOnly": d.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to update disk %d: %w", d.ID, err)
	}
	return nil
}
