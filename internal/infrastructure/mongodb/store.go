package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/events"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	pkgmongo "github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/mongodb"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/outbox"
	outboxMongo "github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/outbox/mongodb"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

// Collection names
const (
	CollectionBatches         = "batches"
	CollectionCrates          = "crates"
	CollectionReconciliations = "reconciliations"
	CollectionScans           = "scan_attempts"
	CollectionSequences       = "sequences"
)

type txKey struct{}

// Store implements domain.Store on MongoDB. Writes made inside
// WithinTransaction share one multi-document transaction, and domain events
// are written to the outbox collection in that same transaction.
type Store struct {
	batches         mongoCollection
	crates          mongoCollection
	reconciliations mongoCollection
	scans           mongoCollection
	sequences       mongoCollection

	tx           transactor
	breaker      *resilience.CircuitBreaker
	outboxRepo   outbox.Repository
	eventFactory *cloudevents.EventFactory
	logger       *logging.Logger
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a store on the client's database. breaker may be nil.
func NewStore(client *pkgmongo.Client, eventFactory *cloudevents.EventFactory, breaker *resilience.CircuitBreaker, logger *logging.Logger) *Store {
	db := client.Database()
	return newStore(mongoDatabaseWrapper{db: db}, client, outboxMongo.NewOutboxRepository(db), eventFactory, breaker, logger)
}

func newStore(
	db mongoDatabase,
	tx transactor,
	outboxRepo outbox.Repository,
	eventFactory *cloudevents.EventFactory,
	breaker *resilience.CircuitBreaker,
	logger *logging.Logger,
) *Store {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig("dispatch-service"))
	}
	return &Store{
		batches:         db.Collection(CollectionBatches),
		crates:          db.Collection(CollectionCrates),
		reconciliations: db.Collection(CollectionReconciliations),
		scans:           db.Collection(CollectionScans),
		sequences:       db.Collection(CollectionSequences),
		tx:              tx,
		breaker:         breaker,
		outboxRepo:      outboxRepo,
		eventFactory:    eventFactory,
		logger:          logger.WithComponent("mongodb-store"),
	}
}

// BreakerConfig returns the circuit breaker settings for transactions.
// Only infrastructure failures count against the breaker.
func BreakerConfig() *resilience.CircuitBreakerConfig {
	config := resilience.DefaultCircuitBreakerConfig("mongodb")
	config.IsSuccessful = func(err error) bool { return !isInfrastructureFailure(err) }
	return config
}

func (s *Store) Batches() domain.BatchRepository {
	return &batchRepository{s: s, collection: s.batches}
}
func (s *Store) Crates() domain.CrateRepository { return &crateRepository{s: s, collection: s.crates} }
func (s *Store) Reconciliations() domain.ReconciliationRepository {
	return &reconciliationRepository{collection: s.reconciliations}
}
func (s *Store) Scans() domain.ScanRepository { return &scanRepository{collection: s.scans} }

// Outbox is the repository the outbox publisher drains
func (s *Store) Outbox() outbox.Repository { return s.outboxRepo }

func (s *Store) Sequences() domain.SequenceGenerator {
	return &sequenceGenerator{collection: s.sequences}
}

// WithinTransaction runs fn in a MongoDB transaction. Nested calls join the
// outer transaction. While the breaker is open, calls fail fast with a
// TransientError.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if joined, _ := ctx.Value(txKey{}).(bool); joined {
		return fn(ctx)
	}

	run := func() error {
		return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return fn(context.WithValue(txCtx, txKey{}, true))
		})
	}

	var err error
	if s.breaker == nil {
		err = run()
	} else {
		_, err = s.breaker.Execute(ctx, func() (any, error) { return nil, run() })
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		return domain.NewTransientError("transaction", err)
	case isTransientMongoError(err):
		s.logger.WithError(err).Warn("Transaction aborted by a transient failure")
		return domain.NewTransientError("transaction", err)
	}
	return err
}

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique ones that back code, QR and one-record-per-crate constraints.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		collection mongoCollection
		name       string
		models     []mongo.IndexModel
	}{
		{s.batches, CollectionBatches, []mongo.IndexModel{
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "originId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "destinationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.crates, CollectionCrates, []mongo.IndexModel{
			{Keys: bson.D{{Key: "qrCode", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "batchId", Value: 1}, {Key: "qrCode", Value: 1}}},
			{Keys: bson.D{{Key: "reconciled", Value: 1}}},
			{Keys: bson.D{{Key: "variety", Value: 1}, {Key: "harvestedAt", Value: -1}}},
			{Keys: bson.D{{Key: "supervisorId", Value: 1}, {Key: "harvestedAt", Value: -1}}},
		}},
		{s.reconciliations, CollectionReconciliations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "crateId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "batchId", Value: 1}, {Key: "recordedAt", Value: 1}}},
		}},
		{s.scans, CollectionScans, []mongo.IndexModel{
			{Keys: bson.D{{Key: "batchId", Value: 1}, {Key: "scannedAt", Value: -1}}},
			{Keys: bson.D{{Key: "scannedAt", Value: 1}}},
		}},
	}

	for _, spec := range specs {
		if _, err := spec.collection.Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", spec.name, err)
		}
	}

	if ensurer, ok := s.outboxRepo.(interface{ EnsureIndexes(context.Context) error }); ok {
		if err := ensurer.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create outbox indexes: %w", err)
		}
	}
	return nil
}

func (s *Store) saveBatchEvents(ctx context.Context, batch *domain.Batch) error {
	entries, err := events.ForBatch(ctx, s.eventFactory, batch)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := s.outboxRepo.SaveAll(ctx, entries); err != nil {
			return wrapError("save batch events", err)
		}
	}
	batch.ClearDomainEvents()
	return nil
}

func (s *Store) saveCrateEvents(ctx context.Context, crate *domain.Crate) error {
	entries, err := events.ForCrate(ctx, s.eventFactory, crate)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := s.outboxRepo.SaveAll(ctx, entries); err != nil {
			return wrapError("save crate events", err)
		}
	}
	crate.ClearDomainEvents()
	return nil
}
