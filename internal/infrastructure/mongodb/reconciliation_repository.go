package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	pkgmongo "github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/mongodb"
)

type reconciliationRepository struct {
	collection mongoCollection
}

// Create relies on the unique crateId index for one record per crate
func (r *reconciliationRepository) Create(ctx context.Context, record *domain.ReconciliationRecord) error {
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return wrapError("insert reconciliation record", err)
		}
		existing, findErr := r.FindByCrateID(ctx, record.CrateID)
		if findErr != nil {
			return findErr
		}
		return &domain.DuplicateReconciliationError{Record: existing}
	}
	return nil
}

func (r *reconciliationRepository) FindByCrateID(ctx context.Context, crateID string) (*domain.ReconciliationRecord, error) {
	var record domain.ReconciliationRecord
	if err := r.collection.FindOne(ctx, bson.M{"crateId": crateID}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError("find reconciliation record", err)
	}
	return &record, nil
}

func (r *reconciliationRepository) FindByBatch(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error) {
	sort := bson.D{{Key: "recordedAt", Value: 1}, {Key: "qrCode", Value: 1}}
	cursor, err := r.collection.Find(ctx, bson.M{"batchId": batchID}, options.Find().SetSort(sort))
	if err != nil {
		return nil, wrapError("find reconciliation records", err)
	}
	defer cursor.Close(ctx)

	records := make([]*domain.ReconciliationRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, wrapError("decode reconciliation records", err)
	}
	return records, nil
}

type scanRepository struct {
	collection mongoCollection
}

func (r *scanRepository) Append(ctx context.Context, scan *domain.ScanAttempt) error {
	if _, err := r.collection.InsertOne(ctx, scan); err != nil {
		return wrapError("append scan attempt", err)
	}
	return nil
}

func (r *scanRepository) FindByBatch(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"batchId": batchID}, pkgmongo.PageOptions(1, limit, pkgmongo.SortDescending("scannedAt")))
	if err != nil {
		return nil, wrapError("find scan attempts", err)
	}
	defer cursor.Close(ctx)

	scans := make([]*domain.ScanAttempt, 0)
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, wrapError("decode scan attempts", err)
	}
	return scans, nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (r *scanRepository) countBy(ctx context.Context, since time.Time, key interface{}) ([]groupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "scannedAt", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: key}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError("aggregate scan attempts", err)
	}
	defer cursor.Close(ctx)

	var rows []groupCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrapError("decode scan counts", err)
	}
	return rows, nil
}

func (r *scanRepository) CountByOutcome(ctx context.Context, since time.Time) (map[domain.ScanOutcome]int64, error) {
	rows, err := r.countBy(ctx, since, "$outcome")
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.ScanOutcome]int64, len(rows))
	for _, row := range rows {
		counts[domain.ScanOutcome(row.Key)] = row.Count
	}
	return counts, nil
}

func (r *scanRepository) CountByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	day := bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: "%Y-%m-%d"},
		{Key: "date", Value: "$scannedAt"},
		{Key: "timezone", Value: "UTC"},
	}}}
	rows, err := r.countBy(ctx, since, day)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

type sequenceGenerator struct {
	collection mongoCollection
}

type sequenceDocument struct {
	Name  string `bson:"_id"`
	Value int    `bson:"value"`
}

// Next increments the named counter, creating it on first use
func (g *sequenceGenerator) Next(ctx context.Context, name string) (int, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc sequenceDocument
	err := g.collection.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"value": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, wrapError("advance sequence "+name, err)
	}
	return doc.Value, nil
}
