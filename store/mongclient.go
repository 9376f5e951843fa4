package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/insightsack/logger"
)

const (
	_DEFAULT_CONNECT_ATTEMPTS = 3
	_DEFAULT_CONNECT_DELAY    = 2 * time.Second
	_STAGING_SUFFIX           = "_staging"
)

type JSON map[string]any

type Store[T any] struct {
	name             string
	database         string
	collection_name  string
	client           *mongo.Client
	collection       *mongo.Collection
	connect_attempts uint
	connect_delay    time.Duration
}

func New[T any](ctx context.Context, connection_string, database, collection string, opts ...StoreOption[T]) (*Store[T], error) {
	store := &Store[T]{
		name:             fmt.Sprintf("%s/%s", database, collection),
		database:         database,
		collection_name:  collection,
		connect_attempts: _DEFAULT_CONNECT_ATTEMPTS,
		connect_delay:    _DEFAULT_CONNECT_DELAY,
	}
	for _, opt := range opts {
		opt(store)
	}

	client, err := store.createMongoClient(ctx, connection_string)
	if err != nil {
		return nil, err
	}
	store.client = client
	store.collection = client.Database(database).Collection(collection)
	return store, nil
}

func (store *Store[T]) Get(ctx context.Context, filter JSON, fields JSON, sort_by JSON, top_n int) ([]T, error) {
	find_options := options.Find()
	if len(fields) > 0 {
		find_options = find_options.SetProjection(fields)
	}
	if len(sort_by) > 0 {
		find_options = find_options.SetSort(sort_by)
	}
	if top_n > 0 {
		find_options = find_options.SetLimit(int64(top_n))
	}
	return store.extractFromCursor(ctx, filterOrAll(filter), find_options)
}

// Aggregate decodes every document produced by the pipeline into R. The
// output shape of a pipeline rarely matches T, so the result type is chosen
// by the caller.
func Aggregate[T, R any](ctx context.Context, store *Store[T], pipeline []JSON) ([]R, error) {
	cursor, err := store.collection.Aggregate(ctx, pipeline)
	if err != nil {
		logger.Component("mongoclient").WithError(err).Errorf("[%s] aggregation failed", store.name)
		return nil, err
	}
	defer cursor.Close(ctx)

	contents := make([]R, 0)
	if err = cursor.All(ctx, &contents); err != nil {
		return nil, fmt.Errorf("[%s] decode aggregation: %w", store.name, err)
	}
	return contents, nil
}

func (store *Store[T]) Aggregate(ctx context.Context, pipeline []JSON) ([]T, error) {
	return Aggregate[T, T](ctx, store, pipeline)
}

func (store *Store[T]) Distinct(ctx context.Context, field string, filter JSON) ([]any, error) {
	values, err := store.collection.Distinct(ctx, field, filterOrAll(filter))
	if err != nil {
		logger.Component("mongoclient").WithError(err).Errorf("[%s] distinct %s failed", store.name, field)
		return nil, err
	}
	return values, nil
}

func (store *Store[T]) Count(ctx context.Context, filter JSON) (int64, error) {
	return store.collection.CountDocuments(ctx, filterOrAll(filter))
}

// Replace swaps the whole collection for docs. The docs are written to a
// staging collection which is then renamed over the live one, so readers see
// either the old set or the new set and never a partial insert.
func (store *Store[T]) Replace(ctx context.Context, docs []T) error {
	log := logger.Component("mongoclient")
	db := store.client.Database(store.database)

	if len(docs) == 0 {
		// mongo rejects an empty InsertMany; an empty set is a dropped collection
		if err := store.collection.Drop(ctx); err != nil {
			return fmt.Errorf("[%s] drop: %w", store.name, err)
		}
		log.Infof("[%s] collection cleared, nothing to insert", store.name)
		return nil
	}

	staging_name := store.collection_name + _STAGING_SUFFIX
	staging := db.Collection(staging_name)
	if err := staging.Drop(ctx); err != nil {
		return fmt.Errorf("[%s] drop staging: %w", store.name, err)
	}

	res, err := staging.InsertMany(ctx, datautils.Transform(docs, func(item *T) any { return *item }))
	if err != nil {
		log.WithError(err).Errorf("[%s] staging insertion failed", store.name)
		_ = staging.Drop(ctx)
		return err
	}

	rename := bson.D{
		{Key: "renameCollection", Value: store.database + "." + staging_name},
		{Key: "to", Value: store.database + "." + store.collection_name},
		{Key: "dropTarget", Value: true},
	}
	if err := store.client.Database("admin").RunCommand(ctx, rename).Err(); err != nil {
		_ = staging.Drop(ctx)
		return fmt.Errorf("[%s] swap staging collection: %w", store.name, err)
	}
	log.Infof("[%s] %d items inserted", store.name, len(res.InsertedIDs))
	return nil
}

func (store *Store[T]) Close(ctx context.Context) error {
	if store.client == nil {
		return nil
	}
	return store.client.Disconnect(ctx)
}

func (store *Store[T]) extractFromCursor(ctx context.Context, filter JSON, find_options *options.FindOptions) ([]T, error) {
	cursor, err := store.collection.Find(ctx, filter, find_options)
	if err != nil {
		logger.Component("mongoclient").WithError(err).Errorf("[%s] couldn't retrieve items", store.name)
		return nil, err
	}
	defer cursor.Close(ctx)

	contents := make([]T, 0)
	if err = cursor.All(ctx, &contents); err != nil {
		return nil, fmt.Errorf("[%s] decode items: %w", store.name, err)
	}
	return contents, nil
}

func (store *Store[T]) createMongoClient(ctx context.Context, connection_string string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connection_string))
	if err != nil {
		return nil, fmt.Errorf("[mongoclient] connect: %w", err)
	}

	err = retry.Do(
		func() error { return client.Ping(ctx, readpref.Primary()) },
		retry.Attempts(store.connect_attempts),
		retry.Delay(store.connect_delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Component("mongoclient").Warnf("[%s] ping attempt %d failed: %v", store.name, n+1, err)
		}),
	)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("[mongoclient] ping %s: %w", store.name, err)
	}
	return client, nil
}

func filterOrAll(filter JSON) JSON {
	if filter == nil {
		return JSON{}
	}
	return filter
}
