package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// StockRepository reads and writes stock locations and the issue history
// that return planning walks. Issue history order matters: records are
// always read back in insertion order (issuedAt ascending).
type StockRepository struct {
	locations *mongo.Collection
	history   *mongo.Collection
}

func NewStockRepository(db *mongo.Database) *StockRepository {
	repo := &StockRepository{
		locations: db.Collection("stock_locations"),
		history:   db.Collection("issue_history"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *StockRepository) ensureIndexes(ctx context.Context) {
	locationIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "loadcellId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "itemId", Value: 1}}},
		{Keys: bson.D{{Key: "binId", Value: 1}}},
	}
	r.locations.Indexes().CreateMany(ctx, locationIndexes)

	historyIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "actorId", Value: 1}, {Key: "itemId", Value: 1}, {Key: "issuedAt", Value: 1}}},
	}
	r.history.Indexes().CreateMany(ctx, historyIndexes)
}

func (r *StockRepository) FindLocationsByItem(ctx context.Context, itemID string) ([]*domain.StockLocation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "loadcellId", Value: 1}})
	cursor, err := r.locations.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*domain.StockLocation
	err = cursor.All(ctx, &locations)
	return locations, err
}

func (r *StockRepository) FindLocationsByBin(ctx context.Context, binID string) ([]*domain.StockLocation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "loadcellId", Value: 1}})
	cursor, err := r.locations.Find(ctx, bson.M{"binId": binID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*domain.StockLocation
	err = cursor.All(ctx, &locations)
	return locations, err
}

func (r *StockRepository) FindIssueHistory(ctx context.Context, actorID, itemID string) ([]*domain.IssueRecord, error) {
	filter := bson.M{"actorId": actorID, "itemId": itemID}
	opts := options.Find().SetSort(bson.D{{Key: "issuedAt", Value: 1}})

	cursor, err := r.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.IssueRecord
	err = cursor.All(ctx, &records)
	return records, err
}

// FindActorBins returns the set of bins this actor has drawn the item from
// before, used to bias issue allocation toward familiar bins
func (r *StockRepository) FindActorBins(ctx context.Context, actorID, itemID string) (map[string]bool, error) {
	filter := bson.M{"actorId": actorID, "itemId": itemID}

	values, err := r.history.Distinct(ctx, "binId", filter)
	if err != nil {
		return nil, err
	}

	bins := make(map[string]bool, len(values))
	for _, v := range values {
		if binID, ok := v.(string); ok {
			bins[binID] = true
		}
	}
	return bins, nil
}

func (r *StockRepository) UpdateAvailableQty(ctx context.Context, loadcellID string, delta int) error {
	filter := bson.M{"loadcellId": loadcellID}
	update := bson.M{
		"$inc": bson.M{"availableQty": delta},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	result, err := r.locations.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update stock quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("stock location %s not found", loadcellID)
	}
	return nil
}

func (r *StockRepository) SaveIssueRecord(ctx context.Context, record *domain.IssueRecord) error {
	record.UpdatedAt = time.Now()
	if record.IssuedAt.IsZero() {
		record.IssuedAt = record.UpdatedAt
	}

	if _, err := r.history.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save issue record: %w", err)
	}
	return nil
}

// RecordReturn consumes outstanding issued quantity from the actor's history
// for one loadcell, oldest records first, mirroring the order return
// planning walks them in
func (r *StockRepository) RecordReturn(ctx context.Context, actorID, itemID, loadcellID string, quantity int) error {
	filter := bson.M{"actorId": actorID, "itemId": itemID, "loadcellId": loadcellID}
	opts := options.Find().SetSort(bson.D{{Key: "issuedAt", Value: 1}})

	cursor, err := r.history.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to load issue history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.IssueRecord
	if err := cursor.All(ctx, &records); err != nil {
		return fmt.Errorf("failed to decode issue history: %w", err)
	}

	remaining := quantity
	for _, record := range records {
		if remaining == 0 {
			break
		}

		outstanding := record.Outstanding()
		if outstanding == 0 {
			continue
		}

		consume := min(remaining, outstanding)
		update := bson.M{
			"$inc": bson.M{"returnedQty": consume},
			"$set": bson.M{"updatedAt": time.Now()},
		}
		if _, err := r.history.UpdateOne(ctx, bson.M{"_id": record.ID}, update); err != nil {
			return fmt.Errorf("failed to record return: %w", err)
		}
		remaining -= consume
	}

	if remaining > 0 {
		return fmt.Errorf("return of %d exceeds outstanding issued quantity for loadcell %s", quantity, loadcellID)
	}
	return nil
}
