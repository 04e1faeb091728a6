package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item is immutable reference data describing an inventory item
type Item struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ItemID         string             `bson:"itemId"`
	Name           string             `bson:"name"`
	PartNumber     string             `bson:"partNumber,omitempty"`
	MaterialNumber string             `bson:"materialNumber,omitempty"`
	Type           string             `bson:"type"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}
