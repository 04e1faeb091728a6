package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidUnitWeight = errors.New("loadcell unit weight must be positive")
)

// StockLocation binds one loadcell in one bin to one item. Quantity at the
// location is derived from the loadcell weight against its calibration.
type StockLocation struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	LoadcellID         string             `bson:"loadcellId"`
	BinID              string             `bson:"binId"`
	CabinetID          string             `bson:"cabinetId"`
	ItemID             string             `bson:"itemId"`
	ItemName           string             `bson:"itemName"`
	UnitWeight         float64            `bson:"unitWeight"`
	ZeroWeight         float64            `bson:"zeroWeight"`
	CalibratedCapacity int                `bson:"calibratedCapacity"`
	AvailableQty       int                `bson:"availableQty"`
	ExpiresAt          *time.Time         `bson:"expiresAt,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// QuantityFromWeight derives the item count at this location from a raw
// loadcell weight reading. A non-positive unit weight is a configuration
// error and is never swallowed.
func (l *StockLocation) QuantityFromWeight(weight float64) (int, error) {
	if l.UnitWeight <= 0 {
		return 0, ErrInvalidUnitWeight
	}

	net := weight - l.ZeroWeight
	if net < 0 {
		net = 0
	}

	return int(net / l.UnitWeight), nil
}

// SpareCapacity returns how many more units this location can hold
func (l *StockLocation) SpareCapacity() int {
	spare := l.CalibratedCapacity - l.AvailableQty
	if spare < 0 {
		return 0
	}
	return spare
}

// FillRatio returns availableQty / calibratedCapacity, used to order
// replenishment candidates least-full first
func (l *StockLocation) FillRatio() float64 {
	if l.CalibratedCapacity <= 0 {
		return 1.0
	}
	return float64(l.AvailableQty) / float64(l.CalibratedCapacity)
}

// Expired reports whether the stock at this location is past its expiry
func (l *StockLocation) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IssueRecord tracks an outstanding issued quantity for one actor, item and
// location, consumed by return planning in stored order
type IssueRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ActorID     string             `bson:"actorId"`
	ItemID      string             `bson:"itemId"`
	LoadcellID  string             `bson:"loadcellId"`
	BinID       string             `bson:"binId"`
	IssuedQty   int                `bson:"issuedQty"`
	ReturnedQty int                `bson:"returnedQty"`
	IssuedAt    time.Time          `bson:"issuedAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// Outstanding returns the quantity still held by the actor from this record
func (r *IssueRecord) Outstanding() int {
	out := r.IssuedQty - r.ReturnedQty
	if out < 0 {
		return 0
	}
	return out
}
