package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	pkgmongo "github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/mongodb"
)

type crateRepository struct {
	s          *Store
	collection mongoCollection
}

func (r *crateRepository) Create(ctx context.Context, crate *domain.Crate) error {
	if _, err := r.collection.InsertOne(ctx, crate); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.AlreadyExistsError{Resource: "crate", Key: crate.QRCode}
		}
		return wrapError("insert crate", err)
	}
	return r.s.saveCrateEvents(ctx, crate)
}

func (r *crateRepository) FindByID(ctx context.Context, crateID string) (*domain.Crate, error) {
	return r.findOne(ctx, bson.M{"_id": crateID})
}

func (r *crateRepository) FindByQRCode(ctx context.Context, qrCode string) (*domain.Crate, error) {
	return r.findOne(ctx, bson.M{"qrCode": qrCode})
}

func (r *crateRepository) findOne(ctx context.Context, filter bson.M) (*domain.Crate, error) {
	var crate domain.Crate
	if err := r.collection.FindOne(ctx, filter).Decode(&crate); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError("find crate", err)
	}
	return &crate, nil
}

func (r *crateRepository) FindByBatch(ctx context.Context, batchID string) ([]*domain.Crate, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"batchId": batchID}, pkgmongo.PageOptions(1, 0, pkgmongo.SortAscending("qrCode")))
	if err != nil {
		return nil, wrapError("find batch crates", err)
	}
	defer cursor.Close(ctx)

	crates := make([]*domain.Crate, 0)
	if err := cursor.All(ctx, &crates); err != nil {
		return nil, wrapError("decode crates", err)
	}
	return crates, nil
}

func (r *crateRepository) List(ctx context.Context, filter domain.CrateFilter, page domain.Pagination) ([]*domain.Crate, int64, error) {
	query := crateQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapError("count crates", err)
	}

	sort := bson.D{{Key: "harvestedAt", Value: -1}, {Key: "qrCode", Value: 1}}
	cursor, err := r.collection.Find(ctx, query, pkgmongo.PageOptions(int(page.Page), int(page.PageSize), sort))
	if err != nil {
		return nil, 0, wrapError("list crates", err)
	}
	defer cursor.Close(ctx)

	crates := make([]*domain.Crate, 0)
	if err := cursor.All(ctx, &crates); err != nil {
		return nil, 0, wrapError("decode crates", err)
	}
	return crates, total, nil
}

func crateQuery(filter domain.CrateFilter) bson.M {
	query := bson.M{}
	if filter.BatchID != nil {
		query["batchId"] = *filter.BatchID
	}
	if filter.Variety != nil {
		query["variety"] = *filter.Variety
	}
	if filter.SupervisorID != nil {
		query["supervisorId"] = *filter.SupervisorID
	}
	if filter.QualityGrade != nil {
		query["qualityGrade"] = *filter.QualityGrade
	}
	harvested := bson.M{}
	if filter.HarvestedFrom != nil {
		harvested["$gte"] = *filter.HarvestedFrom
	}
	if filter.HarvestedTo != nil {
		harvested["$lt"] = *filter.HarvestedTo
	}
	if len(harvested) > 0 {
		query["harvestedAt"] = harvested
	}
	return query
}

func (r *crateRepository) FindUnassigned(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error) {
	filter := bson.M{"batchId": nil}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapError("count unassigned crates", err)
	}

	sort := bson.D{{Key: "harvestedAt", Value: -1}, {Key: "qrCode", Value: 1}}
	cursor, err := r.collection.Find(ctx, filter, pkgmongo.PageOptions(int(page.Page), int(page.PageSize), sort))
	if err != nil {
		return nil, 0, wrapError("find unassigned crates", err)
	}
	defer cursor.Close(ctx)

	crates := make([]*domain.Crate, 0)
	if err := cursor.All(ctx, &crates); err != nil {
		return nil, 0, wrapError("decode crates", err)
	}
	return crates, total, nil
}

// AssignToBatch only matches a crate that has no batch yet
func (r *crateRepository) AssignToBatch(ctx context.Context, crate *domain.Crate) error {
	filter := bson.M{"_id": crate.ID, "batchId": nil}
	update := bson.M{"$set": bson.M{
		"batchId":    crate.BatchID,
		"assignedAt": crate.AssignedAt,
		"updatedAt":  crate.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError("assign crate", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	stored, err := r.FindByID(ctx, crate.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return domain.NewNotFoundError("crate", crate.ID)
	}
	return &domain.CrateAssignedError{CrateID: crate.ID, BatchID: stored.BatchID}
}

// MarkReconciled only matches a crate that is still unreconciled
func (r *crateRepository) MarkReconciled(ctx context.Context, crate *domain.Crate) error {
	filter := bson.M{"_id": crate.ID, "reconciled": false}
	update := bson.M{"$set": bson.M{
		"reconciled":         true,
		"reconciledWeight":   crate.ReconciledWeight,
		"weightDifferential": crate.WeightDifferential,
		"reconciledPhotoUrl": crate.ReconciledPhotoURL,
		"reconciledAt":       crate.ReconciledAt,
		"updatedAt":          crate.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError("mark crate reconciled", err)
	}
	if result.MatchedCount == 0 {
		stored, err := r.FindByID(ctx, crate.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.NewNotFoundError("crate", crate.ID)
		}
		return domain.ErrDuplicateReconciliation
	}
	return r.s.saveCrateEvents(ctx, crate)
}

func (r *crateRepository) Count(ctx context.Context) (int64, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, wrapError("count crates", err)
	}
	reconciled, err := r.collection.CountDocuments(ctx, bson.M{"reconciled": true})
	if err != nil {
		return 0, 0, wrapError("count reconciled crates", err)
	}
	return total, reconciled, nil
}
