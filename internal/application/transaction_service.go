package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/internal/orchestrator"
	"github.com/smartcab-platform/transaction-service/internal/planner"
	apperrors "github.com/smartcab-platform/transaction-service/pkg/errors"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// TransactionRunner starts the execution of a planned transaction.
// Implemented by the orchestrator; faked in tests.
type TransactionRunner interface {
	Start(ctx context.Context, tx *domain.Transaction) (*orchestrator.OrchestrationContext, error)
}

// TransactionApplicationService handles transaction use cases: planning,
// starting, querying and the operator overrides that feed the live
// orchestrations
type TransactionApplicationService struct {
	planner  *planner.Planner
	repo     domain.TransactionRepository
	runner   TransactionRunner
	registry *orchestrator.Registry
	logger   *logging.Logger
}

// NewTransactionApplicationService creates a new TransactionApplicationService
func NewTransactionApplicationService(
	p *planner.Planner,
	repo domain.TransactionRepository,
	runner TransactionRunner,
	registry *orchestrator.Registry,
	logger *logging.Logger,
) *TransactionApplicationService {
	return &TransactionApplicationService{
		planner:  p,
		repo:     repo,
		runner:   runner,
		registry: registry,
		logger:   logger,
	}
}

// PlanAndStart plans a transaction and launches its orchestration. Planning
// failures surface synchronously; no transaction record is created for them.
func (s *TransactionApplicationService) PlanAndStart(ctx context.Context, cmd CreateTransactionCommand) (*TransactionDTO, error) {
	txType := domain.TransactionType(cmd.Type)
	switch txType {
	case domain.TransactionTypeIssue, domain.TransactionTypeReturn, domain.TransactionTypeReplenish:
	default:
		return nil, apperrors.ErrValidation(fmt.Sprintf("unknown transaction type: %s", cmd.Type))
	}
	if len(cmd.Items) == 0 {
		return nil, apperrors.ErrValidation("at least one item is required")
	}

	requested := make([]planner.RequestedItem, 0, len(cmd.Items))
	totalQty := 0
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.ErrValidation(fmt.Sprintf("quantity for item %s must be positive", item.ItemID))
		}
		requested = append(requested, planner.RequestedItem{ItemID: item.ItemID, Quantity: item.Quantity})
		totalQty += item.Quantity
	}

	transactionID := uuid.New().String()

	steps, err := s.planner.Plan(ctx, transactionID, txType, requested, cmd.UserID)
	if err != nil {
		s.logger.WithError(err).Warn("planning failed", "type", cmd.Type, "userId", cmd.UserID)
		return nil, planningError(err)
	}

	tx, err := domain.NewTransaction(transactionID, txType, cmd.UserID, totalQty, steps)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	if err := s.repo.Save(ctx, tx); err != nil {
		s.logger.WithError(err).Error("failed to create transaction", "transactionId", transactionID)
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if _, err := s.runner.Start(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrDuplicateContext) {
			return nil, apperrors.ErrConflict("transaction is already running").Wrap(err)
		}
		s.logger.WithError(err).Error("failed to start orchestration", "transactionId", transactionID)
		return nil, fmt.Errorf("failed to start orchestration: %w", err)
	}

	s.logger.Info("transaction planned and started",
		"transactionId", transactionID, "type", cmd.Type, "steps", len(steps))
	return ToTransactionDTO(tx), nil
}

// GetTransaction retrieves a transaction by id
func (s *TransactionApplicationService) GetTransaction(ctx context.Context, query GetTransactionQuery) (*TransactionDTO, error) {
	tx, err := s.repo.FindByID(ctx, query.TransactionID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get transaction", "transactionId", query.TransactionID)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx == nil {
		return nil, apperrors.ErrNotFoundWithID("transaction", query.TransactionID)
	}

	return ToTransactionDTO(tx), nil
}

// ListTransactions lists transactions, optionally filtered by status
func (s *TransactionApplicationService) ListTransactions(ctx context.Context, query ListTransactionsQuery) ([]*TransactionDTO, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		txs []*domain.Transaction
		err error
	)
	switch {
	case query.Active:
		txs, err = s.activeTransactions(ctx)
	case query.Status != "":
		txs, err = s.repo.FindByStatus(ctx, domain.TransactionStatus(query.Status))
	default:
		txs, err = s.repo.FindRecent(ctx, limit)
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to list transactions")
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	dtos := make([]*TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, ToTransactionDTO(tx))
	}
	return dtos, nil
}

// activeTransactions loads the persisted records of every live
// orchestration. A registry entry whose record is gone is skipped; the
// orchestration is about to deregister anyway.
func (s *TransactionApplicationService) activeTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	ids := s.registry.ActiveIDs()
	txs := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// GetTransactionEvents lists the audit events of one transaction
func (s *TransactionApplicationService) GetTransactionEvents(ctx context.Context, query GetTransactionEventsQuery) ([]TransactionEventDTO, error) {
	tx, err := s.repo.FindByID(ctx, query.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx == nil {
		return nil, apperrors.ErrNotFoundWithID("transaction", query.TransactionID)
	}

	events := make([]TransactionEventDTO, 0, len(tx.Events))
	for i := range tx.Events {
		events = append(events, ToTransactionEventDTO(&tx.Events[i]))
	}
	return events, nil
}

// ForceNextStep delivers the operator override to the live orchestration.
// Accepted only while the transaction waits on a user action or a
// discrepancy.
func (s *TransactionApplicationService) ForceNextStep(ctx context.Context, cmd ForceNextStepCommand) error {
	octx, err := s.registry.Lookup(cmd.TransactionID)
	if err != nil {
		return apperrors.ErrNotFoundWithID("active transaction", cmd.TransactionID).Wrap(err)
	}

	accepted := octx.DeliverForceNext(orchestrator.ForceNext{
		TransactionID:     cmd.TransactionID,
		IsNextRequestItem: cmd.IsNextRequestItem,
		Operator:          cmd.Operator,
	})
	if !accepted {
		return apperrors.ErrConflict("transaction is not waiting on a user action or discrepancy")
	}

	s.logger.Info("force next step accepted",
		"transactionId", cmd.TransactionID, "operator", cmd.Operator)
	return nil
}

// CancelTransaction cancels a live orchestration, or a pending transaction
// that never started
func (s *TransactionApplicationService) CancelTransaction(ctx context.Context, cmd CancelTransactionCommand) error {
	reason := cmd.Reason
	if reason == "" {
		reason = "cancelled by operator"
	}

	if octx, err := s.registry.Lookup(cmd.TransactionID); err == nil {
		octx.Cancel(reason)
		s.logger.Info("cancellation requested", "transactionId", cmd.TransactionID)
		return nil
	}

	tx, err := s.repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx == nil {
		return apperrors.ErrNotFoundWithID("transaction", cmd.TransactionID)
	}
	if err := tx.Cancel(reason); err != nil {
		return apperrors.ErrConflict("transaction is already finished").Wrap(err)
	}
	if err := s.repo.Save(ctx, tx); err != nil {
		return fmt.Errorf("failed to save cancelled transaction: %w", err)
	}

	s.logger.Info("pending transaction cancelled", "transactionId", cmd.TransactionID)
	return nil
}

// CompleteUserAction reports that the user finished at the open bin. Mirrors
// the bus channel for tablets that speak HTTP instead.
func (s *TransactionApplicationService) CompleteUserAction(ctx context.Context, cmd CompleteUserActionCommand) error {
	octx, err := s.registry.Lookup(cmd.TransactionID)
	if err != nil {
		return apperrors.ErrNotFoundWithID("active transaction", cmd.TransactionID).Wrap(err)
	}

	if !octx.DeliverUserAction(orchestrator.UserActionNotice{
		TransactionID: cmd.TransactionID,
		BinID:         cmd.BinID,
	}) {
		return apperrors.ErrConflict("transaction is not waiting for a user action")
	}
	return nil
}

// AcknowledgeWarning delivers the operator response to a discrepancy warning
func (s *TransactionApplicationService) AcknowledgeWarning(ctx context.Context, cmd AcknowledgeWarningCommand) error {
	octx, err := s.registry.Lookup(cmd.TransactionID)
	if err != nil {
		return apperrors.ErrNotFoundWithID("active transaction", cmd.TransactionID).Wrap(err)
	}

	if !octx.DeliverWarningAck(orchestrator.WarningAck{
		TransactionID:       cmd.TransactionID,
		IsCloseWarningPopup: cmd.IsCloseWarningPopup,
		IsNextRequestItem:   cmd.IsNextRequestItem,
	}) {
		return apperrors.ErrConflict("transaction is not waiting on a warning")
	}
	return nil
}

// planningError maps planning sentinels to API errors. All of them are
// client-actionable except the internal consistency failures.
func planningError(err error) error {
	switch {
	case errors.Is(err, domain.ErrItemUnavailable),
		errors.Is(err, domain.ErrNoIssueHistory),
		errors.Is(err, domain.ErrNoReplenishableLocation):
		return apperrors.ErrNotFound("stock for requested item").Wrap(err)
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOverReturn),
		errors.Is(err, domain.ErrInsufficientSpace):
		return apperrors.ErrUnprocessable(err.Error()).Wrap(err)
	case errors.Is(err, domain.ErrAllocationInconsistent),
		errors.Is(err, domain.ErrEmptyPlan):
		return apperrors.ErrInternal(err.Error()).Wrap(err)
	default:
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	}
}
