package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type StoreOption[T any] func(store *Store[T])

// WithConnectRetry overrides how often the initial ping is attempted.
func WithConnectRetry[T any](attempts uint, delay time.Duration) StoreOption[T] {
	return func(store *Store[T]) {
		if attempts > 0 {
			store.connect_attempts = attempts
		}
		if delay > 0 {
			store.connect_delay = delay
		}
	}
}

// SortKey is one key of a $sort stage. Sort stages keep key order, so they
// are built from ordered keys instead of a JSON map.
type SortKey struct {
	Field string
	Order int
}

func Asc(field string) SortKey  { return SortKey{Field: field, Order: 1} }
func Desc(field string) SortKey { return SortKey{Field: field, Order: -1} }

// Match returns a $match stage. An empty filter matches everything.
func Match(filter JSON) JSON {
	return JSON{"$match": filterOrAll(filter)}
}

// Group returns a $group stage keyed by id with the given accumulators.
func Group(id any, accumulators JSON) JSON {
	group := JSON{"_id": id}
	for k, v := range accumulators {
		group[k] = v
	}
	return JSON{"$group": group}
}

func Sort(keys ...SortKey) JSON {
	sort_by := make(bson.D, 0, len(keys))
	for _, key := range keys {
		sort_by = append(sort_by, bson.E{Key: key.Field, Value: key.Order})
	}
	return JSON{"$sort": sort_by}
}

func Project(fields JSON) JSON {
	return JSON{"$project": fields}
}

// Field turns a document field name into a $-prefixed field path.
func Field(name string) string {
	return "$" + name
}

func Avg(field string) JSON {
	return JSON{"$avg": Field(field)}
}

// Count is the {$sum: 1} accumulator.
func Count() JSON {
	return JSON{"$sum": 1}
}

// Compound builds an ordered compound _id such as {topic: "$topic", year: "$start_year"}.
func Compound(keys ...bson.E) bson.D {
	return bson.D(keys)
}
