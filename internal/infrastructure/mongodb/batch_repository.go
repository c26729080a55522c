package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	pkgmongo "github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/mongodb"
)

type batchRepository struct {
	s          *Store
	collection mongoCollection
}

func (r *batchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	if _, err := r.collection.InsertOne(ctx, batch); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.AlreadyExistsError{Resource: "batch", Key: batch.Code}
		}
		return wrapError("insert batch", err)
	}
	return r.s.saveBatchEvents(ctx, batch)
}

// Update replaces the stored document only while its version is unchanged
func (r *batchRepository) Update(ctx context.Context, batch *domain.Batch) error {
	next := *batch
	next.Version = batch.Version + 1
	next.DomainEvents = nil

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": batch.ID, "version": batch.Version}, &next)
	if err != nil {
		return wrapError("update batch", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": batch.ID})
		if err != nil {
			return wrapError("check batch", err)
		}
		if n == 0 {
			return domain.NewNotFoundError("batch", batch.ID)
		}
		return &domain.ConcurrencyConflictError{Resource: "batch", ID: batch.ID}
	}

	if err := r.s.saveBatchEvents(ctx, batch); err != nil {
		return err
	}
	batch.Version = next.Version
	return nil
}

func (r *batchRepository) FindByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	return r.findOne(ctx, bson.M{"_id": batchID})
}

func (r *batchRepository) FindByCode(ctx context.Context, code string) (*domain.Batch, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *batchRepository) findOne(ctx context.Context, filter bson.M) (*domain.Batch, error) {
	var batch domain.Batch
	if err := r.collection.FindOne(ctx, filter).Decode(&batch); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError("find batch", err)
	}
	return &batch, nil
}

func (r *batchRepository) List(ctx context.Context, filter domain.BatchFilter, page domain.Pagination) ([]*domain.Batch, int64, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.OriginID != nil {
		query["originId"] = *filter.OriginID
	}
	if filter.DestinationID != nil {
		query["destinationId"] = *filter.DestinationID
	}
	if filter.SupervisorID != nil {
		query["supervisorId"] = *filter.SupervisorID
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapError("count batches", err)
	}

	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "code", Value: -1}}
	cursor, err := r.collection.Find(ctx, query, pkgmongo.PageOptions(int(page.Page), int(page.PageSize), sort))
	if err != nil {
		return nil, 0, wrapError("list batches", err)
	}
	defer cursor.Close(ctx)

	batches := make([]*domain.Batch, 0)
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, 0, wrapError("decode batches", err)
	}
	return batches, total, nil
}

type statusCount struct {
	Status domain.BatchStatus `bson:"_id"`
	Count  int64              `bson:"count"`
}

func (r *batchRepository) CountByStatus(ctx context.Context) (map[domain.BatchStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError("count batches by status", err)
	}
	defer cursor.Close(ctx)

	var rows []statusCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrapError("decode status counts", err)
	}
	counts := make(map[domain.BatchStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
