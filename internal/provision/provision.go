// Package provision turns catalog queries into a booted Linode with one
// distribution disk, an optional swap disk and a boot profile.
//
// A run either ends with a running Linode or deletes whatever it created:
//
//	Created -> DiskCreating -> ConfigCreating -> Booting -> Running
//
// with a single failure edge from any of these to RollingBack -> Deleted.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/util"

	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewRequest and to zero fields of a Request.
const (
	DefaultPlan        = "1024"
	DefaultSwapMB      = 256
	DefaultPaymentTerm = 1
)

// DefaultRollbackTimeout bounds the deletion of a half-built Linode.
var DefaultRollbackTimeout = 2 * time.Minute

// API is the subset of Linode actions a provisioning run performs.
// *providers.LinodeProvider implements it.
type API interface {
	CreateLinode(ctx context.Context, datacenterID, planID int64, paymentTerm int) (*domain.Linode, error)
	GetLinode(ctx context.Context, id int64) (*domain.Linode, error)
	UpdateLinode(ctx context.Context, id int64, label string) error
	DeleteLinode(ctx context.Context, id int64, skipChecks bool) error
	CreateDiskFromDistribution(ctx context.Context, linodeID, distributionID int64, label string, sizeMB int, rootPass string) (*domain.Disk, *job.Handle, error)
	CreateSwapDisk(ctx context.Context, linodeID int64, sizeMB int, label string) (*domain.Disk, *job.Handle, error)
	CreateConfig(ctx context.Context, linodeID, kernelID int64, opts domain.ConfigOpts) (*domain.Config, error)
	BootLinode(ctx context.Context, id, configID int64) (*job.Handle, error)
}

// Catalog resolves queries to catalog entries. *catalog.Resolver
// implements it.
type Catalog interface {
	Datacenter(ctx context.Context, query string) (domain.Datacenter, error)
	Plan(ctx context.Context, query string) (domain.Plan, error)
	Distribution(ctx context.Context, query string) (domain.Distribution, error)
	Kernel(ctx context.Context, query string) (domain.Kernel, error)
}

// Tracker records the jobs a run issues. Track is called once per job when
// it is issued and Finalize once it has finished. When a rollback deletes
// the Linode, AbandonLinode is called for the jobs still unfinished on it.
type Tracker interface {
	Track(h *job.Handle)
	Finalize(h *job.Handle)
	AbandonLinode(linodeID int64, reason string)
}

// Request describes the Linode to build. Queries are matched by the
// Catalog.
type Request struct {
	RootPassword string
	Datacenter   string
	Distribution string
	Plan         string

	// Label is applied right after creation; empty keeps the API's default.
	Label string

	// Kernel is empty to use the latest kernel for the distribution's
	// architecture.
	Kernel string

	// DiskSizeMB is 0 to use the plan's whole disk allowance minus swap.
	DiskSizeMB int

	// SwapMB is 0 for no swap disk.
	SwapMB      int
	PaymentTerm int
}

// NewRequest returns a Request with the default plan, swap size and
// payment term.
func NewRequest(rootPassword, datacenter, distribution string) Request {
	return Request{
		RootPassword: rootPassword,
		Datacenter:   datacenter,
		Distribution: distribution,
		Plan:         DefaultPlan,
		SwapMB:       DefaultSwapMB,
		PaymentTerm:  DefaultPaymentTerm,
	}
}

func (r Request) validate() error {
	var errs []error
	if r.RootPassword == "" {
		errs = append(errs, errors.New("root password is required"))
	}
	if strings.TrimSpace(r.Datacenter) == "" {
		errs = append(errs, errors.New("datacenter is required"))
	}
	if strings.TrimSpace(r.Distribution) == "" {
		errs = append(errs, errors.New("distribution is required"))
	}
	if r.Label != "" {
		if err := util.ValidateLabel(r.Label); err != nil {
			errs = append(errs, err)
		}
	}
	if r.DiskSizeMB < 0 {
		errs = append(errs, fmt.Errorf("disk size must not be negative, got %d", r.DiskSizeMB))
	}
	if r.SwapMB < 0 {
		errs = append(errs, fmt.Errorf("swap size must not be negative, got %d", r.SwapMB))
	}
	switch r.PaymentTerm {
	case 1, 12, 24:
	default:
		errs = append(errs, fmt.Errorf("payment term must be 1, 12 or 24 months, got %d", r.PaymentTerm))
	}
	return errors.Join(errs...)
}

// plan is a Request resolved against the catalog.
type plan struct {
	datacenter   domain.Datacenter
	plan         domain.Plan
	distribution domain.Distribution
	kernel       domain.Kernel
	diskMB       int
	swapMB       int
}

// Provisioner runs provisioning workflows. Runs share no state and may
// execute concurrently.
type Provisioner struct {
	api             API
	catalog         Catalog
	tracker         Tracker
	logger          *slog.Logger
	rollbackTimeout time.Duration
	onStage         func(Stage, int64)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithTracker records every issued job.
func WithTracker(t Tracker) Option {
	return func(p *Provisioner) { p.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// WithRollbackTimeout bounds the deletion of a half-built Linode.
func WithRollbackTimeout(d time.Duration) Option {
	return func(p *Provisioner) { p.rollbackTimeout = d }
}

// OnStage registers a callback invoked on every stage transition with the
// Linode ID, which is 0 until the Linode exists.
func OnStage(fn func(stage Stage, linodeID int64)) Option {
	return func(p *Provisioner) { p.onStage = fn }
}

// New creates a Provisioner.
func New(api API, cat Catalog, opts ...Option) *Provisioner {
	p := &Provisioner{
		api:             api,
		catalog:         cat,
		logger:          slog.Default(),
		rollbackTimeout: DefaultRollbackTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision builds and boots a Linode. On failure it returns a
// *ProvisionError; a Linode created along the way has been deleted unless
// the error's RollbackErr is set.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*domain.Linode, error) {
	if req.Plan == "" {
		req.Plan = DefaultPlan
	}
	if req.PaymentTerm == 0 {
		req.PaymentTerm = DefaultPaymentTerm
	}
	if err := req.validate(); err != nil {
		return nil, &ProvisionError{Stage: StageResolving, Err: err}
	}

	p.enter(StageResolving, 0)
	pl, err := p.resolve(ctx, req)
	if err != nil {
		return nil, &ProvisionError{Stage: StageResolving, Err: err}
	}
	p.logger.Info("provisioning linode",
		"datacenter", pl.datacenter.Location,
		"plan", pl.plan.Label,
		"distribution", pl.distribution.Label,
		"kernel", pl.kernel.Label,
		"disk_mb", pl.diskMB,
		"swap_mb", pl.swapMB,
	)

	p.enter(StageCreating, 0)
	l, err := p.api.CreateLinode(ctx, pl.datacenter.ID, pl.plan.ID, req.PaymentTerm)
	if err != nil {
		if l != nil && l.ID != 0 {
			return nil, p.rollback(ctx, l.ID, StageCreated, err)
		}
		return nil, &ProvisionError{Stage: StageCreating, Err: err}
	}
	p.enter(StageCreated, l.ID)

	if req.Label != "" {
		if err := p.api.UpdateLinode(ctx, l.ID, req.Label); err != nil {
			return nil, p.rollback(ctx, l.ID, StageCreated, err)
		}
		l.Label = req.Label
	}

	if stage, err := p.build(ctx, l, pl, req.RootPassword); err != nil {
		return nil, p.rollback(ctx, l.ID, stage, err)
	}

	p.enter(StageRunning, l.ID)
	return l, nil
}

// resolve looks up the catalog entries for req. The kernel depends on the
// distribution and is resolved last.
func (p *Provisioner) resolve(ctx context.Context, req Request) (plan, error) {
	var pl plan
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		pl.datacenter, err = p.catalog.Datacenter(gctx, req.Datacenter)
		if err != nil {
			return fmt.Errorf("resolve datacenter: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pl.plan, err = p.catalog.Plan(gctx, req.Plan)
		if err != nil {
			return fmt.Errorf("resolve plan: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pl.distribution, err = p.catalog.Distribution(gctx, req.Distribution)
		if err != nil {
			return fmt.Errorf("resolve distribution: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return plan{}, err
	}

	query := req.Kernel
	if strings.TrimSpace(query) == "" {
		query = catalog.DefaultKernelQuery(pl.distribution)
	}
	kernel, err := p.catalog.Kernel(ctx, query)
	if err != nil {
		return plan{}, fmt.Errorf("resolve kernel: %w", err)
	}
	pl.kernel = kernel

	allowance := pl.plan.DiskMB - req.SwapMB
	if allowance <= 0 {
		return plan{}, fmt.Errorf("swap of %d MB leaves no room on %s (%d MB)", req.SwapMB, pl.plan.Label, pl.plan.DiskMB)
	}
	pl.swapMB = req.SwapMB
	pl.diskMB = req.DiskSizeMB
	if pl.diskMB == 0 {
		pl.diskMB = allowance
	}
	if pl.diskMB > allowance {
		return plan{}, fmt.Errorf("disk of %d MB exceeds the %d MB left on %s after %d MB swap",
			pl.diskMB, allowance, pl.plan.Label, pl.swapMB)
	}
	return pl, nil
}

// build runs the steps after creation and returns the stage it stopped in.
func (p *Provisioner) build(ctx context.Context, l *domain.Linode, pl plan, rootPass string) (Stage, error) {
	p.enter(StageDiskCreating, l.ID)
	disks, err := p.createDisks(ctx, l.ID, pl, rootPass)
	if err != nil {
		return StageDiskCreating, err
	}

	p.enter(StageConfigCreating, l.ID)
	ids := make([]int64, len(disks))
	for i, d := range disks {
		ids[i] = d.ID
	}
	cfg, err := p.api.CreateConfig(ctx, l.ID, pl.kernel.ID, domain.ConfigOpts{
		Label:   ConfigLabel(pl.distribution),
		DiskIDs: ids,
	})
	if err != nil {
		return StageConfigCreating, err
	}

	p.enter(StageBooting, l.ID)
	boot, err := p.api.BootLinode(ctx, l.ID, cfg.ID)
	if err != nil {
		return StageBooting, err
	}
	p.track(boot)
	_, err = boot.Wait(ctx)
	p.finalize(boot)
	if err != nil {
		return StageBooting, err
	}

	if fresh, err := p.api.GetLinode(ctx, l.ID); err != nil {
		p.logger.Warn("failed to refresh linode after boot", "linode_id", l.ID, "error", err)
	} else {
		*l = *fresh
	}
	l.Disks = disks
	l.Configs = []domain.Config{*cfg}
	return StageRunning, nil
}

// createDisks issues the main disk and, if requested, the swap disk without
// waiting in between, then waits for both jobs together.
func (p *Provisioner) createDisks(ctx context.Context, linodeID int64, pl plan, rootPass string) ([]domain.Disk, error) {
	var (
		disks   []domain.Disk
		handles []*job.Handle
	)
	defer func() {
		for _, h := range handles {
			p.finalize(h)
		}
	}()

	disk, h, err := p.api.CreateDiskFromDistribution(ctx, linodeID, pl.distribution.ID,
		DiskLabel(pl.distribution), pl.diskMB, rootPass)
	if err != nil {
		return nil, err
	}
	p.track(h)
	handles = append(handles, h)
	disks = append(disks, *disk)

	if pl.swapMB > 0 {
		swap, h, err := p.api.CreateSwapDisk(ctx, linodeID, pl.swapMB, "")
		if err != nil {
			return nil, err
		}
		p.track(h)
		handles = append(handles, h)
		disks = append(disks, *swap)
	}

	if _, err := job.WaitAll(ctx, handles...); err != nil {
		return nil, err
	}
	return disks, nil
}

// rollback force-deletes a half-built Linode. It runs on a context detached
// from ctx so a cancelled run still cleans up.
func (p *Provisioner) rollback(ctx context.Context, linodeID int64, stage Stage, cause error) error {
	perr := &ProvisionError{Stage: stage, Err: cause, LinodeID: linodeID}
	p.logger.Warn("provisioning failed, deleting linode", "linode_id", linodeID, "stage", stage, "error", cause)
	p.enter(StageRollingBack, linodeID)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.rollbackTimeout)
	defer cancel()
	if err := p.api.DeleteLinode(rctx, linodeID, true); err != nil {
		p.logger.Error("rollback failed", "linode_id", linodeID, "error", err)
		perr.RollbackErr = err
		return perr
	}

	if p.tracker != nil {
		p.tracker.AbandonLinode(linodeID, "linode deleted by rollback")
	}
	p.enter(StageDeleted, linodeID)
	return perr
}

func (p *Provisioner) enter(stage Stage, linodeID int64) {
	p.logger.Debug("provision stage", "stage", stage, "linode_id", linodeID)
	if p.onStage != nil {
		p.onStage(stage, linodeID)
	}
}

func (p *Provisioner) track(h *job.Handle) {
	if p.tracker != nil && h != nil {
		p.tracker.Track(h)
	}
}

func (p *Provisioner) finalize(h *job.Handle) {
	if p.tracker != nil && h != nil && h.Done() {
		p.tracker.Finalize(h)
	}
}

// DiskLabel is the label of the main disk built from d.
func DiskLabel(d domain.Distribution) string {
	return d.Label + " Disk Image"
}

// ConfigLabel is the label of the boot profile for d.
func ConfigLabel(d domain.Distribution) string {
	return "My " + d.Label + " Profile"
}
