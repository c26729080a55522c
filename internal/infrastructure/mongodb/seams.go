package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) mongoSingleResult
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) mongoSingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (mongoCursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (mongoCursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Indexes() mongoIndexView
}

type mongoSingleResult interface {
	Decode(v interface{}) error
}

type mongoCursor interface {
	All(ctx context.Context, results interface{}) error
	Close(ctx context.Context) error
}

type mongoIndexView interface {
	CreateMany(ctx context.Context, models []mongo.IndexModel, opts ...*options.CreateIndexesOptions) ([]string, error)
}

type mongoDatabase interface {
	Collection(name string, opts ...*options.CollectionOptions) mongoCollection
}

// transactor is satisfied by pkg/mongodb.Client
type transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoDatabaseWrapper struct {
	db *mongo.Database
}

func (w mongoDatabaseWrapper) Collection(name string, opts ...*options.CollectionOptions) mongoCollection {
	return mongoCollectionWrapper{collection: w.db.Collection(name, opts...)}
}

type mongoCollectionWrapper struct {
	collection *mongo.Collection
}

func (w mongoCollectionWrapper) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return w.collection.InsertOne(ctx, document, opts...)
}

func (w mongoCollectionWrapper) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	return w.collection.ReplaceOne(ctx, filter, replacement, opts...)
}

func (w mongoCollectionWrapper) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return w.collection.UpdateOne(ctx, filter, update, opts...)
}

func (w mongoCollectionWrapper) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) mongoSingleResult {
	return w.collection.FindOne(ctx, filter, opts...)
}

func (w mongoCollectionWrapper) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) mongoSingleResult {
	return w.collection.FindOneAndUpdate(ctx, filter, update, opts...)
}

func (w mongoCollectionWrapper) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (mongoCursor, error) {
	cursor, err := w.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (w mongoCollectionWrapper) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (mongoCursor, error) {
	cursor, err := w.collection.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (w mongoCollectionWrapper) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return w.collection.CountDocuments(ctx, filter, opts...)
}

func (w mongoCollectionWrapper) Indexes() mongoIndexView {
	return w.collection.Indexes()
}
