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

type BinRepository struct {
	collection *mongo.Collection
}

func NewBinRepository(db *mongo.Database) *BinRepository {
	repo := &BinRepository{
		collection: db.Collection("bins"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *BinRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "binId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "cabinetId", Value: 1}}},
		{Keys: bson.D{{Key: "isFailed", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *BinRepository) Save(ctx context.Context, bin *domain.Bin) error {
	bin.UpdatedAt = time.Now()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"binId": bin.BinID}
	update := bson.M{"$set": bin}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save bin: %w", err)
	}
	return nil
}

func (r *BinRepository) FindByID(ctx context.Context, binID string) (*domain.Bin, error) {
	var bin domain.Bin
	err := r.collection.FindOne(ctx, bson.M{"binId": binID}).Decode(&bin)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &bin, err
}

func (r *BinRepository) FindByCabinetID(ctx context.Context, cabinetID string) ([]*domain.Bin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"cabinetId": cabinetID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bins []*domain.Bin
	err = cursor.All(ctx, &bins)
	return bins, err
}

func (r *BinRepository) FindFailed(ctx context.Context) ([]*domain.Bin, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"isFailed": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bins []*domain.Bin
	err = cursor.All(ctx, &bins)
	return bins, err
}
