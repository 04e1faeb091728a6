package application

import (
	"context"
	"fmt"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	apperrors "github.com/smartcab-platform/transaction-service/pkg/errors"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// ItemApplicationService serves item reference data lookups
type ItemApplicationService struct {
	repo   domain.ItemRepository
	logger *logging.Logger
}

// NewItemApplicationService creates a new ItemApplicationService
func NewItemApplicationService(repo domain.ItemRepository, logger *logging.Logger) *ItemApplicationService {
	return &ItemApplicationService{repo: repo, logger: logger}
}

// GetItem returns one item by id
func (s *ItemApplicationService) GetItem(ctx context.Context, itemID string) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get item", "itemId", itemID)
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, apperrors.ErrNotFoundWithID("item", itemID)
	}
	return ToItemDTO(item), nil
}

// ListItems returns all items
func (s *ItemApplicationService) ListItems(ctx context.Context) ([]*ItemDTO, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list items")
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	dtos := make([]*ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, ToItemDTO(item))
	}
	return dtos, nil
}
