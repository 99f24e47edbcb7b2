package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// configField maps one optional ConfigOpts field onto its request name.
type configField struct {
	name  string
	value func(domain.ConfigOpts) (any, bool)
}

// configFields is the translation table between ConfigOpts and the
// linode.config.create / linode.config.update request fields.
var configFields = []configField{
	{"Comments", func(o domain.ConfigOpts) (any, bool) { return deref(o.Comments) }},
	{"RAMLimit", func(o domain.ConfigOpts) (any, bool) { return deref(o.RAMLimit) }},
	{"DiskList", func(o domain.ConfigOpts) (any, bool) {
		if o.DiskIDs == nil {
			return nil, false
		}
		return linodeapi.FormatDiskList(o.DiskIDs), true
	}},
	{"RunLevel", func(o domain.ConfigOpts) (any, bool) { return deref(o.RunLevel) }},
	{"RootDeviceNum", func(o domain.ConfigOpts) (any, bool) { return deref(o.RootDeviceNum) }},
	{"RootDeviceCustom", func(o domain.ConfigOpts) (any, bool) { return deref(o.RootDeviceCustom) }},
	{"RootDeviceRO", func(o domain.ConfigOpts) (any, bool) { return deref(o.RootDeviceRO) }},
	{"helper_disableUpdateDB", func(o domain.ConfigOpts) (any, bool) { return deref(o.HelperDisableUpdateDB) }},
	{"helper_xen", func(o domain.ConfigOpts) (any, bool) { return deref(o.HelperXen) }},
	{"helper_depmod", func(o domain.ConfigOpts) (any, bool) { return deref(o.HelperDepmod) }},
	{"devtmpfs_automount", func(o domain.ConfigOpts) (any, bool) { return deref(o.DevtmpfsAutomount) }},
}

func deref[T any](v *T) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

// configParams builds request parameters from the set fields of opts.
func configParams(opts domain.ConfigOpts) linodeapi.Params {
	params := linodeapi.Params{}
	if opts.Label != "" {
		params["Label"] = opts.Label
	}
	for _, f := range configFields {
		if v, ok := f.value(opts); ok {
			params[f.name] = v
		}
	}
	return params
}

// ListConfigs returns the configuration profiles of a Linode.
func (p *LinodeProvider) ListConfigs(ctx context.Context, linodeID int64) ([]domain.Config, error) {
	configs, err := list(ctx, p, "linode.config.list", linodeapi.Params{"LinodeID": linodeID}, linodeapi.DecodeConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs for linode %d: %w", linodeID, err)
	}
	return configs, nil
}

// GetConfig returns a single configuration profile.
func (p *LinodeProvider) GetConfig(ctx context.Context, linodeID, configID int64) (*domain.Config, error) {
	configs, err := list(ctx, p, "linode.config.list",
		linodeapi.Params{"LinodeID": linodeID, "ConfigID": configID}, linodeapi.DecodeConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to get config %d: %w", configID, err)
	}
	for i := range configs {
		if configs[i].ID == configID {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("config %d on linode %d: %w", configID, linodeID, domain.ErrNotFound)
}

// CreateConfig creates a configuration profile. The call completes
// synchronously; no job is involved.
func (p *LinodeProvider) CreateConfig(ctx context.Context, linodeID, kernelID int64, opts domain.ConfigOpts) (*domain.Config, error) {
	if opts.Label == "" {
		return nil, fmt.Errorf("config label is required")
	}
	params := configParams(opts)
	params["LinodeID"] = linodeID
	params["KernelID"] = kernelID

	res, err := p.call(ctx, "linode.config.create", params)
	if err != nil {
		return nil, fmt.Errorf("failed to create config on linode %d: %w", linodeID, err)
	}
	if res.ConfigID == 0 {
		return nil, fmt.Errorf("linode.config.create: no ConfigID in response: %w", domain.ErrIntegrity)
	}
	return p.GetConfig(ctx, linodeID, res.ConfigID)
}

// UpdateConfig changes the set fields of opts on an existing profile.
func (p *LinodeProvider) UpdateConfig(ctx context.Context, linodeID, configID int64, opts domain.ConfigOpts) error {
	params := configParams(opts)
	params["LinodeID"] = linodeID
	params["ConfigID"] = configID

	if _, err := p.client.Call(ctx, "linode.config.update", params); err != nil {
		return fmt.Errorf("failed to update config %d: %w", configID, err)
	}
	return nil
}

// DeleteConfig removes a configuration profile.
func (p *LinodeProvider) DeleteConfig(ctx context.Context, linodeID, configID int64) error {
	_, err := p.client.Call(ctx, "linode.config.delete", linodeapi.Params{
		"LinodeID": linodeID,
		"ConfigID": configID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete config %d: %w", configID, err)
	}
	return nil
}
