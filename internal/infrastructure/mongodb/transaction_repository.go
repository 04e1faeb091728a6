package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
	"github.com/smartcab-platform/transaction-service/pkg/outbox"
	outboxMongo "github.com/smartcab-platform/transaction-service/pkg/outbox/mongodb"
)

type TransactionRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewTransactionRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *TransactionRepository {
	repo := &TransactionRepository{
		collection:   db.Collection("transactions"),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

// GetOutboxRepository exposes the outbox store for the publisher
func (r *TransactionRepository) GetOutboxRepository() *outboxMongo.OutboxRepository {
	return r.outboxRepo
}

func (r *TransactionRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transactionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)

	_ = r.outboxRepo.EnsureIndexes(ctx)
}

// Save persists the transaction aggregate and its pending domain events to
// the outbox in a single MongoDB transaction, so the audit stream can never
// diverge from the stored state
func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	tx.UpdatedAt = time.Now()

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		filter := bson.M{"transactionId": tx.TransactionID}
		update := bson.M{"$set": tx}

		if _, err := r.collection.UpdateOne(sessCtx, filter, update, opts); err != nil {
			return nil, fmt.Errorf("failed to save transaction: %w", err)
		}

		domainEvents := tx.DomainEvents
		if len(domainEvents) > 0 {
			outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))

			for _, event := range domainEvents {
				cloudEvent := r.eventFactory.CreateTransactionEvent(sessCtx, event.EventType(), tx.TransactionID, event)

				outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
					tx.TransactionID,
					"Transaction",
					kafka.Topics.TransactionEvents,
					cloudEvent,
				)
				if err != nil {
					return nil, fmt.Errorf("failed to create outbox event: %w", err)
				}

				outboxEvents = append(outboxEvents, outboxEvent)
			}

			if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
				return nil, fmt.Errorf("failed to save outbox events: %w", err)
			}
		}

		tx.ClearDomainEvents()

		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.collection.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&tx)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &tx, err
}

func (r *TransactionRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []*domain.Transaction
	err = cursor.All(ctx, &txs)
	return txs, err
}

func (r *TransactionRepository) FindByStatus(ctx context.Context, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []*domain.Transaction
	err = cursor.All(ctx, &txs)
	return txs, err
}

func (r *TransactionRepository) FindRecent(ctx context.Context, limit int64) ([]*domain.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []*domain.Transaction
	err = cursor.All(ctx, &txs)
	return txs, err
}

// AppendEvent pushes one audit event onto the stored transaction without
// rewriting the whole aggregate
func (r *TransactionRepository) AppendEvent(ctx context.Context, transactionID string, event domain.TransactionEvent) error {
	filter := bson.M{"transactionId": transactionID}
	update := bson.M{
		"$push": bson.M{"events": event},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}
