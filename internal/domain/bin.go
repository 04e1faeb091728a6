package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxFailedOpenAttempts is the number of consecutive failed open attempts
// after which a bin is marked as failed hardware and excluded from allocation
const MaxFailedOpenAttempts = 3

var (
	ErrBinNotFailed = errors.New("bin is not marked as failed")
)

// Bin is a single lockable compartment inside a cabinet
type Bin struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	BinID              string             `bson:"binId"`
	CabinetID          string             `bson:"cabinetId"`
	Name               string             `bson:"name"`
	LockControllerID   string             `bson:"lockControllerId"`
	LockChannel        int                `bson:"lockChannel"`
	MinQty             int                `bson:"minQty"`
	MaxQty             int                `bson:"maxQty"`
	IsLocked           bool               `bson:"isLocked"`
	IsFailed           bool               `bson:"isFailed"`
	IsDamaged          bool               `bson:"isDamaged"`
	FailedOpenAttempts int                `bson:"failedOpenAttempts"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// RecordFailedOpen increments the failed open counter and marks the bin
// failed once the threshold is crossed. Returns true if the bin is now failed.
func (b *Bin) RecordFailedOpen() bool {
	b.FailedOpenAttempts++
	b.UpdatedAt = time.Now()

	if b.FailedOpenAttempts >= MaxFailedOpenAttempts {
		b.IsFailed = true
	}

	return b.IsFailed
}

// MarkFailed flags the bin as failed hardware
func (b *Bin) MarkFailed() {
	b.IsFailed = true
	b.UpdatedAt = time.Now()
}

// ClearFailure resets the failure state after a manual hardware fix
func (b *Bin) ClearFailure() error {
	if !b.IsFailed {
		return ErrBinNotFailed
	}

	b.IsFailed = false
	b.FailedOpenAttempts = 0
	b.UpdatedAt = time.Now()

	return nil
}

// MarkOpened records a successful unlock
func (b *Bin) MarkOpened() {
	b.IsLocked = false
	b.FailedOpenAttempts = 0
	b.UpdatedAt = time.Now()
}

// MarkClosed records the bin being locked again
func (b *Bin) MarkClosed() {
	b.IsLocked = true
	b.UpdatedAt = time.Now()
}

// Allocatable reports whether the planner may target this bin
func (b *Bin) Allocatable() bool {
	return !b.IsFailed && !b.IsDamaged
}
