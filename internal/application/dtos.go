package application

import "time"

// TransactionDTO represents a transaction in responses
type TransactionDTO struct {
	TransactionID   string                `json:"transactionId"`
	Type            string                `json:"type"`
	Status          string                `json:"status"`
	UserID          string                `json:"userId"`
	TotalRequestQty int                   `json:"totalRequestQty"`
	ExecutionSteps  []ExecutionStepDTO    `json:"executionSteps"`
	CurrentStepID   string                `json:"currentStepId,omitempty"`
	Events          []TransactionEventDTO `json:"events,omitempty"`
	LastError       string                `json:"lastError,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	StartedAt       *time.Time            `json:"startedAt,omitempty"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
}

// ExecutionStepDTO represents one bin visit within a transaction plan
type ExecutionStepDTO struct {
	StepID           string          `json:"stepId"`
	BinID            string          `json:"binId"`
	ItemsToIssue     []ItemActionDTO `json:"itemsToIssue,omitempty"`
	ItemsToReturn    []ItemActionDTO `json:"itemsToReturn,omitempty"`
	ItemsToReplenish []ItemActionDTO `json:"itemsToReplenish,omitempty"`
	KeepTrackItems   []KeepTrackDTO  `json:"keepTrackItems,omitempty"`
	Location         LocationDTO     `json:"location"`
	Instructions     []string        `json:"instructions"`
	Status           string          `json:"status"`
	SkipReason       string          `json:"skipReason,omitempty"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// ItemActionDTO is one item movement planned at a bin
type ItemActionDTO struct {
	ItemID     string `json:"itemId"`
	ItemName   string `json:"itemName"`
	LoadcellID string `json:"loadcellId"`
	RequestQty int    `json:"requestQty"`
	CurrentQty int    `json:"currentQty"`
}

// KeepTrackDTO is an item watched for unauthorized removal during a visit
type KeepTrackDTO struct {
	LoadcellID string `json:"loadcellId"`
	ItemID     string `json:"itemId"`
	ItemName   string `json:"itemName"`
	CurrentQty int    `json:"currentQty"`
}

// LocationDTO describes where the bin lives
type LocationDTO struct {
	CabinetID   string `json:"cabinetId"`
	CabinetName string `json:"cabinetName"`
	ClusterName string `json:"clusterName,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
}

// TransactionEventDTO is one audit row of a transaction
type TransactionEventDTO struct {
	EventID         string    `json:"eventId"`
	StepID          string    `json:"stepId"`
	BinID           string    `json:"binId"`
	ItemID          string    `json:"itemId"`
	QuantityBefore  int       `json:"quantityBefore"`
	QuantityAfter   int       `json:"quantityAfter"`
	QuantityChanged int       `json:"quantityChanged"`
	IsValid         bool      `json:"isValid"`
	Errors          []string  `json:"errors,omitempty"`
	Forced          bool      `json:"forced,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BinDTO represents a bin in responses
type BinDTO struct {
	BinID              string `json:"binId"`
	CabinetID          string `json:"cabinetId"`
	Name               string `json:"name"`
	IsLocked           bool   `json:"isLocked"`
	IsFailed           bool   `json:"isFailed"`
	IsDamaged          bool   `json:"isDamaged"`
	FailedOpenAttempts int    `json:"failedOpenAttempts"`
}

// ItemDTO represents item reference data in responses
type ItemDTO struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	PartNumber     string `json:"partNumber,omitempty"`
	MaterialNumber string `json:"materialNumber,omitempty"`
	Type           string `json:"type"`
}
