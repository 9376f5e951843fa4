package sdk

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/soumitsalman/insightsack/store"
)

const (
	INSIGHTSACK = "insightsack"
	RECORDS     = "records"
)

var (
	_PROJECTION_FIELDS = store.JSON{"_id": 0}
	_SWOT_FIELDS       = store.JSON{
		"_id":        0,
		"title":      1,
		"insight":    1,
		"intensity":  1,
		"likelihood": 1,
	}
)

// MongoRepository runs every dashboard view as an aggregation pipeline over a
// single collection.
type MongoRepository struct {
	recordstore *store.Store[Record]
}

func NewMongoRepository(ctx context.Context, db_conn_str, database, collection string, opts ...store.StoreOption[Record]) (*MongoRepository, error) {
	if database == "" {
		database = INSIGHTSACK
	}
	if collection == "" {
		collection = RECORDS
	}
	recordstore, err := store.New(ctx, db_conn_str, database, collection, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	return &MongoRepository{recordstore: recordstore}, nil
}

func (repo *MongoRepository) Records(ctx context.Context, f *FilterSet, limit int) ([]Record, error) {
	return repo.recordstore.Get(ctx, f.Query(), _PROJECTION_FIELDS, nil, normalizeLimit(limit))
}

func (repo *MongoRepository) Stats(ctx context.Context, f *FilterSet) (*Stats, error) {
	stats, err := store.Aggregate[Record, Stats](ctx, repo.recordstore, statsPipeline(f))
	if err != nil {
		return nil, err
	}
	// no matching documents means no group at all
	if len(stats) == 0 {
		return &Stats{}, nil
	}
	return &stats[0], nil
}

func (repo *MongoRepository) SectorAnalysis(ctx context.Context, f *FilterSet) ([]SectorSummary, error) {
	return store.Aggregate[Record, SectorSummary](ctx, repo.recordstore, sectorPipeline(f))
}

func (repo *MongoRepository) TopicTrends(ctx context.Context, f *FilterSet) ([]TopicTrend, error) {
	return store.Aggregate[Record, TopicTrend](ctx, repo.recordstore, topicTrendPipeline(f))
}

func (repo *MongoRepository) PestleAnalysis(ctx context.Context, f *FilterSet) ([]PestleSummary, error) {
	return store.Aggregate[Record, PestleSummary](ctx, repo.recordstore, pestlePipeline(f))
}

// SwotAnalysis classifies in process: the keyword scoring with its threshold
// fallback has no compact pipeline form.
func (repo *MongoRepository) SwotAnalysis(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	records, err := repo.recordstore.Aggregate(ctx, swotPipeline(f))
	if err != nil {
		return nil, err
	}
	return swotDistribution(records), nil
}

func (repo *MongoRepository) IntensityDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	buckets, err := store.Aggregate[Record, CategoryCount](ctx, repo.recordstore, intensityPipeline(f))
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		if b.Label != nil {
			counts[*b.Label] = b.Count
		}
	}
	return fixedCounts(_INTENSITY_BUCKETS, counts), nil
}

func (repo *MongoRepository) RegionDistribution(ctx context.Context, f *FilterSet) ([]CategoryCount, error) {
	return store.Aggregate[Record, CategoryCount](ctx, repo.recordstore, regionPipeline(f))
}

func (repo *MongoRepository) YearAnalysis(ctx context.Context, f *FilterSet) ([]YearSummary, error) {
	years, err := store.Aggregate[Record, YearSummary](ctx, repo.recordstore, yearPipeline(f))
	if err != nil {
		return nil, err
	}
	return yearsUnknownLast(years), nil
}

func (repo *MongoRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	if !isDistinctField(field) {
		return nil, ErrUnknownField
	}
	values, err := repo.recordstore.Distinct(ctx, field, nil)
	if err != nil {
		return nil, err
	}
	// distinct can surface nulls and non-string values; only strings are listed
	strs := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			strs = append(strs, s)
		}
	}
	return cleanDistinct(strs), nil
}

func (repo *MongoRepository) Count(ctx context.Context) (int64, error) {
	return repo.recordstore.Count(ctx, nil)
}

func (repo *MongoRepository) Replace(ctx context.Context, records []Record) error {
	return repo.recordstore.Replace(ctx, records)
}

func (repo *MongoRepository) Close(ctx context.Context) error {
	return repo.recordstore.Close(ctx)
}

func statsPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Group(nil, store.JSON{
			"avgIntensity":  store.Avg("intensity"),
			"avgLikelihood": store.Avg("likelihood"),
			"avgRelevance":  store.Avg("relevance"),
			"totalRecords":  store.Count(),
		}),
	}
}

func sectorPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Group(store.Field("sector"), store.JSON{
			"avgIntensity":  store.Avg("intensity"),
			"avgLikelihood": store.Avg("likelihood"),
			"count":         store.Count(),
		}),
		store.Sort(store.Desc("avgIntensity"), store.Asc("_id")),
	}
}

func topicTrendPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Group(
			store.Compound(
				bson.E{Key: "topic", Value: store.Field("topic")},
				bson.E{Key: "year", Value: store.Field("start_year")},
			),
			store.JSON{
				"count":        store.Count(),
				"avgIntensity": store.Avg("intensity"),
			}),
		store.Sort(store.Asc("_id.year"), store.Asc("_id.topic")),
	}
}

func pestlePipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Group(store.Field("pestle"), store.JSON{
			"count":         store.Count(),
			"avgIntensity":  store.Avg("intensity"),
			"avgLikelihood": store.Avg("likelihood"),
		}),
		store.Sort(store.Desc("count"), store.Asc("_id")),
	}
}

func swotPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Project(_SWOT_FIELDS),
	}
}

// upper bounds of every bucket but the last, matching intensityBucket
var _INTENSITY_BOUNDS = []int{20, 40, 60, 80}

func intensityPipeline(f *FilterSet) []store.JSON {
	branches := make([]store.JSON, 0, len(_INTENSITY_BOUNDS))
	for i, upper := range _INTENSITY_BOUNDS {
		branches = append(branches, store.JSON{
			"case": store.JSON{"$lte": []any{store.Field("intensity"), upper}},
			"then": _INTENSITY_BUCKETS[i],
		})
	}
	return []store.JSON{
		store.Match(f.Query()),
		store.Match(store.JSON{"intensity": store.JSON{"$type": "number"}}),
		store.Group(
			store.JSON{"$switch": store.JSON{
				"branches": branches,
				"default":  _INTENSITY_BUCKETS[len(_INTENSITY_BUCKETS)-1],
			}},
			store.JSON{"count": store.Count()}),
	}
}

func regionPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Match(store.JSON{"region": store.JSON{"$exists": true, "$ne": ""}}),
		store.Group(store.Field("region"), store.JSON{"count": store.Count()}),
		store.Sort(store.Desc("count"), store.Asc("_id")),
	}
}

func yearPipeline(f *FilterSet) []store.JSON {
	return []store.JSON{
		store.Match(f.Query()),
		store.Group(
			store.JSON{"$ifNull": []any{store.Field("start_year"), store.Field("end_year")}},
			store.JSON{
				"count":         store.Count(),
				"avgIntensity":  store.Avg("intensity"),
				"avgLikelihood": store.Avg("likelihood"),
				"avgRelevance":  store.Avg("relevance"),
			}),
		store.Sort(store.Asc("_id")),
	}
}
