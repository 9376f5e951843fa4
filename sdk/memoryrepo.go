package sdk

import (
	"context"
	"sort"
	"sync/atomic"

	datautils "github.com/soumitsalman/data-utils"
)

// MemoryRepository keeps the record set in process. It serves the same shapes
// as MongoRepository and is used when no database is configured.
type MemoryRepository struct {
	snapshot atomic.Pointer[[]Record]
}

func NewMemoryRepository() *MemoryRepository {
	repo := &MemoryRepository{}
	empty := make([]Record, 0)
	repo.snapshot.Store(&empty)
	return repo
}

func (repo *MemoryRepository) records() []Record {
	return *repo.snapshot.Load()
}

func (repo *MemoryRepository) matching(f *FilterSet) []Record {
	if f.isEmpty() {
		return repo.records()
	}
	return datautils.Filter(repo.records(), func(item *Record) bool { return f.Match(item) })
}

func (repo *MemoryRepository) Records(ctx context.Context, f *FilterSet, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)
	result := make([]Record, 0, limit)
	for _, r := range repo.records() {
		if len(result) == limit {
			break
		}
		if f.Match(&r) {
			result = append(result, r)
		}
	}
	return orEmpty(result), nil
}

func (repo *MemoryRepository) Stats(ctx context.Context, f *FilterSet) (*Stats, error) {
	var acc accumulator
	for _, r := range repo.matching(f) {
		acc.add(&r)
	}
	return &Stats{
		AvgIntensity:  acc.avg(_INTENSITY),
		AvgLikelihood: acc.avg(_LIKELIHOOD),
		AvgRelevance:  acc.avg(_RELEVANCE),
		TotalRecords:  acc.count,
	}, nil
}

func (repo *MemoryRepository) SectorAnalysis(ctx context.Context, f *FilterSet) ([]SectorSummary, error) {
	groups := groupBy(repo.matching(f), func(r *Record) string { return r.Sector })
	result := datautils.Transform(groups, func(g *group[string]) SectorSummary {
		return SectorSummary{
			Sector:        optionalString(g.key),
			AvgIntensity:  g.acc.avg(_INTENSITY),
			AvgLikelihood: g.acc.avg(_LIKELIHOOD),
			Count:         g.acc.count,
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].AvgIntensity != result[j].AvgIntensity {
			return result[i].AvgIntensity > result[j].AvgIntensity
		}
		return compareStrings(result[i].Sector, result[j].Sector) < 0
	})
	return orEmpty(result), nil
}

func (repo *MemoryRepository) TopicTrends(ctx context.Context, f *FilterSet) ([]TopicTrend, error) {
	type topicYear struct {
		topic string
		year  int
		known bool
	}
	groups := groupBy(repo.matching(f), func(r *Record) topicYear {
		if r.StartYear == nil {
			return topicYear{topic: r.Topic}
		}
		return topicYear{topic: r.Topic, year: *r.StartYear, known: true}
	})
	result := datautils.Transform(groups, func(g *group[topicYear]) TopicTrend {
		id := TopicYear{Topic: optionalString(g.key.topic)}
		if g.key.known {
			year := g.key.year
			id.Year = &year
		}
		return TopicTrend{ID: id, Count: g.acc.count, AvgIntensity: g.acc.avg(_INTENSITY)}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if c := compareInts(result[i].ID.Year, result[j].ID.Year); c != 0 {
			return c < 0
		}
		return compareStrings(result[i].ID.Topic, result[j].ID.Topic) < 0
	})
	return orEmpty(result), nil
}

func (repo *MemoryRepository) PestleAnalysis(ctx context.Context, f *FilterSet) ([]PestleSummary, error) {
	groups := groupBy(repo.matching(f), func(r *Record) string { return r.Pestle })
	result := datautils.Transform(groups, func(g *group[string]) PestleSummary {
		return PestleSummary{
			Pestle:        optionalString(g.key),
			Count:         g.acc.count,
			AvgIntensity:  g.acc.avg(_INTENSITY),
			AvgLikelihood: g.acc.avg(_LIKELIHOOD),
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return compareStrings(result[i].Pestle, result[j].Pestle) < 0
	})
	return orEmpty(result), nil
}

func (repo *MemoryRepository) SwotAnalysis(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	return swotDistribution(repo.matching(f)), nil
}

func (repo *MemoryRepository) IntensityDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	counts := make(map[string]int64, len(_INTENSITY_BUCKETS))
	for _, r := range repo.matching(f) {
		if r.Intensity != nil {
			counts[intensityBucket(*r.Intensity)]++
		}
	}
	return fixedCounts(_INTENSITY_BUCKETS, counts), nil
}

func (repo *MemoryRepository) RegionDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	with_region := datautils.Filter(repo.matching(f), func(item *Record) bool { return item.Region != "" })
	groups := groupBy(with_region, func(r *Record) string { return r.Region })
	result := datautils.Transform(groups, func(g *group[string]) CategoryCount {
		return CategoryCount{Label: stringPtr(g.key), Count: g.acc.count}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return compareStrings(result[i].Label, result[j].Label) < 0
	})
	return orEmpty(result), nil
}

func (repo *MemoryRepository) YearAnalysis(ctx context.Context, f *FilterSet) ([]YearSummary, error) {
	const unknown = -1 << 31
	groups := groupBy(repo.matching(f), func(r *Record) int {
		switch {
		case r.StartYear != nil:
			return *r.StartYear
		case r.EndYear != nil:
			return *r.EndYear
		default:
			return unknown
		}
	})
	result := datautils.Transform(groups, func(g *group[int]) YearSummary {
		summary := YearSummary{
			Count:         g.acc.count,
			AvgIntensity:  g.acc.avg(_INTENSITY),
			AvgLikelihood: g.acc.avg(_LIKELIHOOD),
			AvgRelevance:  g.acc.avg(_RELEVANCE),
		}
		if g.key != unknown {
			year := g.key
			summary.Year = &year
		}
		return summary
	})
	sort.SliceStable(result, func(i, j int) bool { return compareInts(result[i].Year, result[j].Year) < 0 })
	return yearsUnknownLast(result), nil
}

func (repo *MemoryRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	if !isDistinctField(field) {
		return nil, ErrUnknownField
	}
	return cleanDistinct(datautils.Transform(repo.records(), func(item *Record) string {
		value, _ := item.StringField(field)
		return value
	})), nil
}

func (repo *MemoryRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(repo.records())), nil
}

func (repo *MemoryRepository) Replace(ctx context.Context, records []Record) error {
	fresh := make([]Record, len(records))
	copy(fresh, records)
	repo.snapshot.Store(&fresh)
	return nil
}

func (repo *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

const (
	_INTENSITY = iota
	_LIKELIHOOD
	_RELEVANCE
)

// accumulator mirrors $avg: missing values are skipped, and an average over
// nothing is 0.
type accumulator struct {
	count int64
	sums  [3]float64
	seen  [3]int64
}

func (acc *accumulator) add(r *Record) {
	acc.count++
	for i, v := range []*float64{r.Intensity, r.Likelihood, r.Relevance} {
		if v != nil {
			acc.sums[i] += *v
			acc.seen[i]++
		}
	}
}

func (acc *accumulator) avg(metric int) float64 {
	if acc.seen[metric] == 0 {
		return 0
	}
	return acc.sums[metric] / float64(acc.seen[metric])
}

type group[K comparable] struct {
	key K
	acc accumulator
}

// groupBy keeps groups in order of first appearance.
func groupBy[K comparable](records []Record, key func(r *Record) K) []group[K] {
	index := make(map[K]int)
	groups := make([]group[K], 0)
	for i := range records {
		k := key(&records[i])
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, group[K]{key: k})
		}
		groups[pos].acc.add(&records[i])
	}
	return groups
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return stringPtr(s)
}
