package orchestrator

// Bus payload shapes for the cabinet hardware and operator channels. These
// travel as the Data field of a CloudEvent envelope; field names are the
// wire contract with cabinet controllers and operator tablets.

// OpenBinCommand asks a cabinet controller to release one lock
type OpenBinCommand struct {
	TransactionID    string `json:"transactionId"`
	BinID            string `json:"binId"`
	LockControllerID string `json:"lockControllerId"`
	LockChannel      int    `json:"lockChannel"`
}

// CloseBinCommand asks a cabinet controller to engage one lock
type CloseBinCommand struct {
	TransactionID string `json:"transactionId"`
	BinID         string `json:"binId"`
}

// LockResult reports the outcome of an open-lock command
type LockResult struct {
	TransactionID string `json:"transactionId"`
	BinID         string `json:"binId"`
	Success       bool   `json:"success"`
	Reason        string `json:"reason,omitempty"`
}

// BinClosedNotice reports that a bin door was physically closed and locked
type BinClosedNotice struct {
	TransactionID string `json:"transactionId"`
	BinID         string `json:"binId"`
}

// UserActionNotice reports that the user finished taking or placing items
// at the open bin
type UserActionNotice struct {
	TransactionID string `json:"transactionId"`
	BinID         string `json:"binId"`
}

// ProcessStatus is published to operator UIs whenever the execution flags
// change
type ProcessStatus struct {
	TransactionID     string `json:"transactionId"`
	StepID            string `json:"stepId,omitempty"`
	BinID             string `json:"binId,omitempty"`
	State             string `json:"state"`
	IsProcessingItem  bool   `json:"isProcessingItem"`
	IsNextRequestItem bool   `json:"isNextRequestItem"`
}

// DiscrepancyWarning is published when a bin visit changed quantities that
// do not match the plan. Advancing past it requires an explicit operator
// acknowledgment or a force-next override.
type DiscrepancyWarning struct {
	TransactionID       string            `json:"transactionId"`
	StepID              string            `json:"stepId"`
	BinID               string            `json:"binId"`
	IsCloseWarningPopup bool              `json:"isCloseWarningPopup"`
	IsNextRequestItem   bool              `json:"isNextRequestItem"`
	Items               []DiscrepancyItem `json:"items"`
}

// DiscrepancyItem describes one mismatched item at the bin
type DiscrepancyItem struct {
	ItemID      string `json:"itemId"`
	LoadcellID  string `json:"loadcellId"`
	RequestQty  int    `json:"requestQty"`
	ActualQty   int    `json:"actualQty"`
	Description string `json:"description"`
}

// WarningAck is an operator acknowledgment of a discrepancy warning
type WarningAck struct {
	TransactionID       string `json:"transactionId"`
	IsCloseWarningPopup bool   `json:"isCloseWarningPopup"`
	IsNextRequestItem   bool   `json:"isNextRequestItem"`
}

// ForceNext is the operator override that unblocks a discrepancy-held
// transaction and moves it to the next step
type ForceNext struct {
	TransactionID     string `json:"transactionId"`
	IsNextRequestItem bool   `json:"isNextRequestItem"`
	Operator          string `json:"operator,omitempty"`
}
