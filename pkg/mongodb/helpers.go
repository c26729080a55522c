package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Now returns the current time in UTC truncated to the millisecond precision
// BSON dates keep
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SortAscending creates an ascending sort option
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// SortDescending creates a descending sort option
func SortDescending(field string) bson.D {
	return bson.D{{Key: field, Value: -1}}
}

// PageOptions builds find options for a 1-based page
func PageOptions(page, pageSize int, sort bson.D) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	return options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
}
