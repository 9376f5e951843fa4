package sdk

import (
	"context"
	"sort"
	"strings"

	datautils "github.com/soumitsalman/data-utils"
)

const (
	DEFAULT_LIMIT = 100
	MAX_LIMIT     = 1000
)

// DistinctFields are the categorical fields that have a value listing.
var DistinctFields = []string{"topic", "sector", "region", "country", "source", "pestle", "impact", "city"}

var _INTENSITY_BUCKETS = []string{"0-20", "21-40", "41-60", "61-80", "81-100"}

// Repository is the record store behind the dashboard. Every method fails
// closed: on error the result is nil and must not be used.
type Repository interface {
	Records(ctx context.Context, f *FilterSet, limit int) ([]Record, error)
	Stats(ctx context.Context, f *FilterSet) (*Stats, error)
	SectorAnalysis(ctx context.Context, f *FilterSet) ([]SectorSummary, error)
	TopicTrends(ctx context.Context, f *FilterSet) ([]TopicTrend, error)
	PestleAnalysis(ctx context.Context, f *FilterSet) ([]PestleSummary, error)
	SwotAnalysis(ctx context.Context, f *FilterSet) ([]CategoryCount, error)
	IntensityDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error)
	RegionDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error)
	YearAnalysis(ctx context.Context, f *FilterSet) ([]YearSummary, error)
	Distinct(ctx context.Context, field string) ([]string, error)
	Count(ctx context.Context) (int64, error)
	// Replace swaps the entire record set. Readers see the old set or the
	// new one, never a mix.
	Replace(ctx context.Context, records []Record) error
	Close(ctx context.Context) error
}

func isDistinctField(field string) bool {
	for _, f := range DistinctFields {
		if f == field {
			return true
		}
	}
	return false
}

func normalizeLimit(limit int) int {
	switch {
	case limit < 1:
		return DEFAULT_LIMIT
	case limit > MAX_LIMIT:
		return MAX_LIMIT
	default:
		return limit
	}
}

// cleanDistinct drops empty and whitespace-only values, dedupes and sorts.
func cleanDistinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := datautils.Filter(values, func(item *string) bool {
		if strings.TrimSpace(*item) == "" || seen[*item] {
			return false
		}
		seen[*item] = true
		return true
	})
	sort.Strings(result)
	return orEmpty(result)
}

func intensityBucket(v float64) string {
	switch {
	case v <= 20:
		return _INTENSITY_BUCKETS[0]
	case v <= 40:
		return _INTENSITY_BUCKETS[1]
	case v <= 60:
		return _INTENSITY_BUCKETS[2]
	case v <= 80:
		return _INTENSITY_BUCKETS[3]
	default:
		return _INTENSITY_BUCKETS[4]
	}
}

// fixedCounts lays counts out in the given label order, zero-filling missing
// labels.
func fixedCounts(labels []string, counts map[string]int64) []CategoryCount {
	return datautils.Transform(labels, func(label *string) CategoryCount {
		return CategoryCount{Label: stringPtr(*label), Count: counts[*label]}
	})
}

func swotDistribution(records []Record) []CategoryCount {
	counts := make(map[string]int64, len(SwotCategories))
	for i := range records {
		counts[ClassifyRecord(&records[i])]++
	}
	return fixedCounts(SwotCategories, counts)
}

// yearsUnknownLast moves the group without a year to the end. Mongo sorts
// null before numbers.
func yearsUnknownLast(years []YearSummary) []YearSummary {
	known := datautils.Filter(years, func(item *YearSummary) bool { return item.Year != nil })
	unknown := datautils.Filter(years, func(item *YearSummary) bool { return item.Year == nil })
	return orEmpty(append(known, unknown...))
}

// orEmpty keeps empty results serializing as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func compareStrings(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return strings.Compare(*a, *b)
	}
}

func compareInts(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
