package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoKeyRepository implements KeyRepository using MongoDB
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{
		collection: db.Collection(idempotencyKeysCollection),
	}
}

func scopeFilter(serviceID, userID, key string) bson.M {
	return bson.M{"serviceId": serviceID, "userId": userID, "key": key}
}

// AcquireLock relies on the unique (serviceId, userId, key) index: the insert
// wins or fails with a duplicate key error.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey, staleAfter time.Duration) (*IdempotencyKey, bool, error) {
	now := time.Now().UTC()
	key.LockedAt = &now

	_, err := r.collection.InsertOne(ctx, key)
	if err == nil {
		return key, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to insert idempotency key: %w", err)
	}

	// Take over a lock abandoned by a crashed request with the same payload
	filter := scopeFilter(key.ServiceID, key.UserID, key.Key)
	filter["completedAt"] = bson.M{"$exists": false}
	filter["requestFingerprint"] = key.RequestFingerprint
	filter["lockedAt"] = bson.M{"$lt": now.Add(-staleAfter)}

	var stored IdempotencyKey
	err = r.collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"lockedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to take over idempotency key: %w", err)
	}

	existing, err := r.Get(ctx, key.ServiceID, key.UserID, key.Key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// ReleaseLock deletes the key unless it already completed
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":         keyID,
		"completedAt": bson.M{"$exists": false},
	})
	return err
}

// StoreResponse stores the final response for a completed request
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	update := bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": keyID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a key by its scope
func (r *MongoKeyRepository) Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error) {
	var result IdempotencyKey
	err := r.collection.FindOne(ctx, scopeFilter(serviceID, userID, key)).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Clean removes expired idempotency keys. The TTL index does the same lazily.
func (r *MongoKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureIndexes ensures that all required indexes are created
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "serviceId", Value: 1},
				{Key: "userId", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_service_user_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
