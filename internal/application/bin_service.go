package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	apperrors "github.com/smartcab-platform/transaction-service/pkg/errors"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// BinApplicationService handles bin administration: listing and clearing
// failed bins so they re-enter allocation
type BinApplicationService struct {
	repo   domain.BinRepository
	logger *logging.Logger
}

// NewBinApplicationService creates a new BinApplicationService
func NewBinApplicationService(repo domain.BinRepository, logger *logging.Logger) *BinApplicationService {
	return &BinApplicationService{repo: repo, logger: logger}
}

// ListBins lists bins, optionally scoped to one cabinet. Without a cabinet
// filter it lists the failed bins, which is the administrative view that
// matters.
func (s *BinApplicationService) ListBins(ctx context.Context, query ListBinsQuery) ([]*BinDTO, error) {
	var (
		bins []*domain.Bin
		err  error
	)
	if query.CabinetID != "" {
		bins, err = s.repo.FindByCabinetID(ctx, query.CabinetID)
	} else {
		bins, err = s.repo.FindFailed(ctx)
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to list bins")
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}

	dtos := make([]*BinDTO, 0, len(bins))
	for _, bin := range bins {
		dtos = append(dtos, ToBinDTO(bin))
	}
	return dtos, nil
}

// ClearBinFailure resets a failed bin after a manual hardware fix, returning
// it to the allocation pool
func (s *BinApplicationService) ClearBinFailure(ctx context.Context, cmd ClearBinFailureCommand) (*BinDTO, error) {
	bin, err := s.repo.FindByID(ctx, cmd.BinID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get bin", "binId", cmd.BinID)
		return nil, fmt.Errorf("failed to get bin: %w", err)
	}
	if bin == nil {
		return nil, apperrors.ErrNotFoundWithID("bin", cmd.BinID)
	}

	if err := bin.ClearFailure(); err != nil {
		if errors.Is(err, domain.ErrBinNotFailed) {
			return nil, apperrors.ErrConflict("bin is not marked as failed").Wrap(err)
		}
		return nil, apperrors.ErrValidation(err.Error())
	}

	if err := s.repo.Save(ctx, bin); err != nil {
		s.logger.WithError(err).Error("failed to save bin", "binId", cmd.BinID)
		return nil, fmt.Errorf("failed to save bin: %w", err)
	}

	s.logger.Info("bin failure cleared", "binId", cmd.BinID)
	return ToBinDTO(bin), nil
}
