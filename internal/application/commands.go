package application

// CreateTransactionCommand represents the request to plan and start a
// cabinet transaction
type CreateTransactionCommand struct {
	Type   string
	UserID string
	Items  []RequestedItemInput
}

// RequestedItemInput is one requested item line
type RequestedItemInput struct {
	ItemID   string
	Quantity int
}

// ForceNextStepCommand represents the operator override that advances a
// discrepancy-held transaction
type ForceNextStepCommand struct {
	TransactionID     string
	IsNextRequestItem bool
	Operator          string
}

// CancelTransactionCommand represents an explicit operator cancellation
type CancelTransactionCommand struct {
	TransactionID string
	Reason        string
}

// CompleteUserActionCommand reports that the user finished at the open bin
type CompleteUserActionCommand struct {
	TransactionID string
	BinID         string
}

// AcknowledgeWarningCommand is the operator response to a discrepancy
// warning popup
type AcknowledgeWarningCommand struct {
	TransactionID       string
	IsCloseWarningPopup bool
	IsNextRequestItem   bool
}

// ClearBinFailureCommand resets a failed bin after a manual hardware fix
type ClearBinFailureCommand struct {
	BinID string
}

// GetTransactionQuery retrieves one transaction by id
type GetTransactionQuery struct {
	TransactionID string
}

// ListTransactionsQuery lists transactions with optional filters. Active
// restricts the result to transactions with a live orchestration.
type ListTransactionsQuery struct {
	Status string
	Active bool
	Limit  int64
}

// GetTransactionEventsQuery lists the audit events of one transaction
type GetTransactionEventsQuery struct {
	TransactionID string
}

// ListBinsQuery lists bins, optionally scoped to one cabinet
type ListBinsQuery struct {
	CabinetID string
}
