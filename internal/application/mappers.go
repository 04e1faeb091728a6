package application

import "github.com/smartcab-platform/transaction-service/internal/domain"

// ToTransactionDTO converts a domain Transaction to TransactionDTO
func ToTransactionDTO(tx *domain.Transaction) *TransactionDTO {
	if tx == nil {
		return nil
	}

	steps := make([]ExecutionStepDTO, 0, len(tx.ExecutionSteps))
	for i := range tx.ExecutionSteps {
		steps = append(steps, ToExecutionStepDTO(&tx.ExecutionSteps[i]))
	}

	events := make([]TransactionEventDTO, 0, len(tx.Events))
	for i := range tx.Events {
		events = append(events, ToTransactionEventDTO(&tx.Events[i]))
	}

	return &TransactionDTO{
		TransactionID:   tx.TransactionID,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		UserID:          tx.UserID,
		TotalRequestQty: tx.TotalRequestQty,
		ExecutionSteps:  steps,
		CurrentStepID:   tx.CurrentStepID,
		Events:          events,
		LastError:       tx.LastError,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
		StartedAt:       tx.StartedAt,
		CompletedAt:     tx.CompletedAt,
	}
}

// ToExecutionStepDTO converts a domain ExecutionStep to ExecutionStepDTO
func ToExecutionStepDTO(step *domain.ExecutionStep) ExecutionStepDTO {
	keepTrack := make([]KeepTrackDTO, 0, len(step.KeepTrackItems))
	for _, kt := range step.KeepTrackItems {
		keepTrack = append(keepTrack, KeepTrackDTO{
			LoadcellID: kt.LoadcellID,
			ItemID:     kt.ItemID,
			ItemName:   kt.ItemName,
			CurrentQty: kt.CurrentQty,
		})
	}

	return ExecutionStepDTO{
		StepID:           step.StepID,
		BinID:            step.BinID,
		ItemsToIssue:     toItemActionDTOs(step.ItemsToIssue),
		ItemsToReturn:    toItemActionDTOs(step.ItemsToReturn),
		ItemsToReplenish: toItemActionDTOs(step.ItemsToReplenish),
		KeepTrackItems:   keepTrack,
		Location: LocationDTO{
			CabinetID:   step.Location.CabinetID,
			CabinetName: step.Location.CabinetName,
			ClusterName: step.Location.ClusterName,
			SiteName:    step.Location.SiteName,
		},
		Instructions: step.Instructions,
		Status:       string(step.Status),
		SkipReason:   step.SkipReason,
		StartedAt:    step.StartedAt,
		CompletedAt:  step.CompletedAt,
	}
}

func toItemActionDTOs(actions []domain.ItemAction) []ItemActionDTO {
	if len(actions) == 0 {
		return nil
	}

	dtos := make([]ItemActionDTO, 0, len(actions))
	for _, a := range actions {
		dtos = append(dtos, ItemActionDTO{
			ItemID:     a.ItemID,
			ItemName:   a.ItemName,
			LoadcellID: a.LoadcellID,
			RequestQty: a.RequestQty,
			CurrentQty: a.CurrentQty,
		})
	}
	return dtos
}

// ToTransactionEventDTO converts a domain TransactionEvent to its DTO
func ToTransactionEventDTO(event *domain.TransactionEvent) TransactionEventDTO {
	return TransactionEventDTO{
		EventID:         event.EventID,
		StepID:          event.StepID,
		BinID:           event.BinID,
		ItemID:          event.ItemID,
		QuantityBefore:  event.QuantityBefore,
		QuantityAfter:   event.QuantityAfter,
		QuantityChanged: event.QuantityChanged,
		IsValid:         event.IsValid,
		Errors:          event.Errors,
		Forced:          event.Forced,
		CreatedAt:       event.CreatedAt,
	}
}

// ToBinDTO converts a domain Bin to BinDTO
func ToBinDTO(bin *domain.Bin) *BinDTO {
	if bin == nil {
		return nil
	}

	return &BinDTO{
		BinID:              bin.BinID,
		CabinetID:          bin.CabinetID,
		Name:               bin.Name,
		IsLocked:           bin.IsLocked,
		IsFailed:           bin.IsFailed,
		IsDamaged:          bin.IsDamaged,
		FailedOpenAttempts: bin.FailedOpenAttempts,
	}
}

// ToItemDTO converts a domain Item to ItemDTO
func ToItemDTO(item *domain.Item) *ItemDTO {
	if item == nil {
		return nil
	}

	return &ItemDTO{
		ItemID:         item.ItemID,
		Name:           item.Name,
		PartNumber:     item.PartNumber,
		MaterialNumber: item.MaterialNumber,
		Type:           item.Type,
	}
}
