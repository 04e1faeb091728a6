package domain

import "context"

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	Save(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, transactionID string) (*Transaction, error)
	FindByUserID(ctx context.Context, userID string) ([]*Transaction, error)
	FindByStatus(ctx context.Context, status TransactionStatus) ([]*Transaction, error)
	FindRecent(ctx context.Context, limit int64) ([]*Transaction, error)
	AppendEvent(ctx context.Context, transactionID string, event TransactionEvent) error
}

// BinRepository defines the interface for bin persistence
type BinRepository interface {
	Save(ctx context.Context, bin *Bin) error
	FindByID(ctx context.Context, binID string) (*Bin, error)
	FindByCabinetID(ctx context.Context, cabinetID string) ([]*Bin, error)
	FindFailed(ctx context.Context) ([]*Bin, error)
}

// StockRepository defines the interface for stock location and issue
// history queries consumed by the planner
type StockRepository interface {
	FindLocationsByItem(ctx context.Context, itemID string) ([]*StockLocation, error)
	FindLocationsByBin(ctx context.Context, binID string) ([]*StockLocation, error)
	FindIssueHistory(ctx context.Context, actorID, itemID string) ([]*IssueRecord, error)
	FindActorBins(ctx context.Context, actorID, itemID string) (map[string]bool, error)
	UpdateAvailableQty(ctx context.Context, loadcellID string, delta int) error
	SaveIssueRecord(ctx context.Context, record *IssueRecord) error
	RecordReturn(ctx context.Context, actorID, itemID, loadcellID string, quantity int) error
}

// ItemRepository defines the interface for item reference data lookups
type ItemRepository interface {
	FindByID(ctx context.Context, itemID string) (*Item, error)
	FindAll(ctx context.Context) ([]*Item, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}
