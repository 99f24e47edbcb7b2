// Package catalog resolves human-friendly queries ("newark", "1024",
// "debian 7") to concrete datacenters, plans, distributions and kernels.
//
// Each listing is fetched from the API at most once per cache and never
// refreshed by the resolver itself.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"nathanbeddoewebdev/linops/internal/cache"
	"nathanbeddoewebdev/linops/internal/domain"
)

// Cache keys for each listing.
const (
	KeyDatacenters   = "datacenters"
	KeyPlans         = "plans"
	KeyDistributions = "distributions"
	KeyKernels       = "kernels"
)

// Source lists catalog entries from the API.
type Source interface {
	ListDatacenters(ctx context.Context) ([]domain.Datacenter, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	ListDistributions(ctx context.Context) ([]domain.Distribution, error)
	ListKernels(ctx context.Context) ([]domain.Kernel, error)
}

// Resolver looks up catalog entries, reading listings through a cache.
// It is safe for concurrent use.
type Resolver struct {
	source Source
	cache  cache.Cache
	logger *slog.Logger

	dcMu, planMu, distMu, kernelMu sync.Mutex
}

// NewResolver creates a Resolver. A nil cache means an in-memory cache that
// lives as long as the resolver.
func NewResolver(source Source, c cache.Cache, logger *slog.Logger) *Resolver {
	if c == nil {
		c = cache.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, cache: c, logger: logger}
}

// Datacenters returns all datacenters.
func (r *Resolver) Datacenters(ctx context.Context) ([]domain.Datacenter, error) {
	return load(ctx, r, KeyDatacenters, &r.dcMu, r.source.ListDatacenters)
}

// Plans returns all plans.
func (r *Resolver) Plans(ctx context.Context) ([]domain.Plan, error) {
	return load(ctx, r, KeyPlans, &r.planMu, r.source.ListPlans)
}

// Distributions returns all distributions.
func (r *Resolver) Distributions(ctx context.Context) ([]domain.Distribution, error) {
	return load(ctx, r, KeyDistributions, &r.distMu, r.source.ListDistributions)
}

// Kernels returns all kernels.
func (r *Resolver) Kernels(ctx context.Context) ([]domain.Kernel, error) {
	return load(ctx, r, KeyKernels, &r.kernelMu, r.source.ListKernels)
}

// Datacenter returns the first datacenter whose location starts with query,
// ignoring case ("newark" matches "Newark, NJ, USA").
func (r *Resolver) Datacenter(ctx context.Context, query string) (domain.Datacenter, error) {
	all, err := r.Datacenters(ctx)
	if err != nil {
		return domain.Datacenter{}, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, dc := range all {
		if q != "" && (strings.HasPrefix(strings.ToLower(dc.Location), q) || strings.EqualFold(dc.Abbr, q)) {
			return dc, nil
		}
	}
	return byID(all, query, "datacenter", func(dc domain.Datacenter) int64 { return dc.ID })
}

// Plan returns the first plan whose label ends with a match for query
// ("1024" matches "Linode 1024").
func (r *Resolver) Plan(ctx context.Context, query string) (domain.Plan, error) {
	all, err := r.Plans(ctx)
	if err != nil {
		return domain.Plan{}, err
	}
	re := compile(query, "$")
	for _, p := range all {
		if re.MatchString(p.Label) {
			return p, nil
		}
	}
	return byID(all, query, "plan", func(p domain.Plan) int64 { return p.ID })
}

// Distribution returns the first distribution whose label contains a match
// for query ("debian 7" matches "Debian 7.5").
func (r *Resolver) Distribution(ctx context.Context, query string) (domain.Distribution, error) {
	all, err := r.Distributions(ctx)
	if err != nil {
		return domain.Distribution{}, err
	}
	re := compile(query, "")
	for _, d := range all {
		if re.MatchString(d.Label) {
			return d, nil
		}
	}
	return byID(all, query, "distribution", func(d domain.Distribution) int64 { return d.ID })
}

// Kernel returns the first kernel whose label contains a match for query.
func (r *Resolver) Kernel(ctx context.Context, query string) (domain.Kernel, error) {
	all, err := r.Kernels(ctx)
	if err != nil {
		return domain.Kernel{}, err
	}
	re := compile(query, "")
	for _, k := range all {
		if re.MatchString(k.Label) {
			return k, nil
		}
	}
	return byID(all, query, "kernel", func(k domain.Kernel) int64 { return k.ID })
}

// DefaultKernelQuery returns the query selecting the latest kernel for the
// distribution's architecture.
func DefaultKernelQuery(d domain.Distribution) string {
	if d.Is64Bit {
		return "Latest 64 bit"
	}
	return "Latest 32 bit"
}

// load returns a listing from the cache, fetching and storing it on a miss.
// Cache failures only cost an extra fetch.
func load[T any](ctx context.Context, r *Resolver, key string, mu *sync.Mutex, fetch func(context.Context) ([]T, error)) ([]T, error) {
	mu.Lock()
	defer mu.Unlock()

	var items []T
	hit, err := r.cache.Get(key, &items)
	if err != nil {
		r.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}
	if hit {
		return items, nil
	}

	items, err = fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %s: %w", key, err)
	}
	if err := r.cache.Put(key, items); err != nil {
		r.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return items, nil
}

// compile builds a case-insensitive pattern from a user query. A query that
// is not a valid expression is matched literally.
func compile(query, suffix string) *regexp.Regexp {
	q := strings.TrimSpace(query)
	re, err := regexp.Compile("(?i)" + q + suffix)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(q) + suffix)
	}
	return re
}

// byID is the fallback for numeric queries that matched no label.
func byID[T any](items []T, query, kind string, id func(T) int64) (T, error) {
	var zero T
	if n, err := strconv.ParseInt(strings.TrimSpace(query), 10, 64); err == nil {
		for _, item := range items {
			if id(item) == n {
				return item, nil
			}
		}
	}
	return zero, fmt.Errorf("%s %q: %w", kind, query, domain.ErrNotFound)
}
