package sdk

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soumitsalman/insightsack/logger"
)

const (
	_DEFAULT_CACHE_TTL     = 5 * time.Minute
	_DEFAULT_CACHE_CLEANUP = 10 * time.Minute
)

type DashboardOption func(d *Dashboard)

// WithCache sets the response cache lifetime. A zero ttl turns caching off;
// a zero cleanup interval keeps expired entries until they are read again.
func WithCache(ttl, cleanup_interval time.Duration) DashboardOption {
	return func(d *Dashboard) {
		d.cache_ttl = ttl
		d.cache_cleanup = cleanup_interval
	}
}

// Dashboard is the read service the HTTP handlers call. It adds a response
// cache on top of a Repository and owns dataset reloads.
type Dashboard struct {
	repo          Repository
	cache         *gocache.Cache
	cache_ttl     time.Duration
	cache_cleanup time.Duration
	// bumped after every replace; part of every cache key
	generation atomic.Uint64
}

func NewDashboard(repo Repository, opts ...DashboardOption) (*Dashboard, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	d := &Dashboard{
		repo:          repo,
		cache_ttl:     _DEFAULT_CACHE_TTL,
		cache_cleanup: _DEFAULT_CACHE_CLEANUP,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cache_ttl > 0 {
		d.cache = gocache.New(d.cache_ttl, d.cache_cleanup)
	}
	return d, nil
}

// cached memoizes one view per operation and filter key. Errors are never
// cached. The key carries the generation read before compute, so a result
// computed against the old record set is never served after a reload.
func cached[T any](d *Dashboard, key string, compute func() (T, error)) (T, error) {
	key = strconv.FormatUint(d.generation.Load(), 10) + "|" + key
	if d.cache != nil {
		if v, found := d.cache.Get(key); found {
			return v.(T), nil
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if d.cache != nil {
		d.cache.SetDefault(key, v)
	}
	return v, nil
}

func (d *Dashboard) Records(ctx context.Context, f *FilterSet, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)
	return cached(d, "data|"+strconv.Itoa(limit)+"|"+f.Key(), func() ([]Record, error) {
		return d.repo.Records(ctx, f, limit)
	})
}

func (d *Dashboard) Stats(ctx context.Context, f *FilterSet) (*Stats, error) {
	return cached(d, "stats|"+f.Key(), func() (*Stats, error) { return d.repo.Stats(ctx, f) })
}

func (d *Dashboard) SectorAnalysis(ctx context.Context, f *FilterSet) ([]SectorSummary, error) {
	return cached(d, "sector|"+f.Key(), func() ([]SectorSummary, error) { return d.repo.SectorAnalysis(ctx, f) })
}

func (d *Dashboard) TopicTrends(ctx context.Context, f *FilterSet) ([]TopicTrend, error) {
	return cached(d, "topic|"+f.Key(), func() ([]TopicTrend, error) { return d.repo.TopicTrends(ctx, f) })
}

func (d *Dashboard) PestleAnalysis(ctx context.Context, f *FilterSet) ([]PestleSummary, error) {
	return cached(d, "pestle|"+f.Key(), func() ([]PestleSummary, error) { return d.repo.PestleAnalysis(ctx, f) })
}

func (d *Dashboard) SwotAnalysis(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	return cached(d, "swot|"+f.Key(), func() ([]CategoryCount, error) { return d.repo.SwotAnalysis(ctx, f) })
}

func (d *Dashboard) IntensityDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	return cached(d, "intensity|"+f.Key(), func() ([]CategoryCount, error) { return d.repo.IntensityDistribution(ctx, f) })
}

func (d *Dashboard) RegionDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	return cached(d, "region|"+f.Key(), func() ([]CategoryCount, error) { return d.repo.RegionDistribution(ctx, f) })
}

func (d *Dashboard) YearAnalysis(ctx context.Context, f *FilterSet) ([]YearSummary, error) {
	return cached(d, "year|"+f.Key(), func() ([]YearSummary, error) { return d.repo.YearAnalysis(ctx, f) })
}

func (d *Dashboard) Distinct(ctx context.Context, field string) ([]string, error) {
	return cached(d, "distinct|"+field, func() ([]string, error) { return d.repo.Distinct(ctx, field) })
}

// Reload loads the dataset from source and replaces the stored record set.
// With onlyIfEmpty set an already populated store is left alone.
func (d *Dashboard) Reload(ctx context.Context, source string, onlyIfEmpty bool) (int, error) {
	log := logger.Component("dashboard")
	if onlyIfEmpty {
		count, err := d.repo.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count records: %w", err)
		}
		if count > 0 {
			log.Infof("store already holds %d records, skipping load", count)
			return 0, nil
		}
	}

	records, err := LoadDataset(ctx, source)
	if err != nil {
		return 0, err
	}
	if err := d.repo.Replace(ctx, records); err != nil {
		return 0, fmt.Errorf("replace records: %w", err)
	}
	d.generation.Add(1)
	if d.cache != nil {
		d.cache.Flush()
	}
	log.Infof("%d records loaded from %s", len(records), source)
	return len(records), nil
}

func (d *Dashboard) Close(ctx context.Context) error {
	return d.repo.Close(ctx)
}
