package bundling

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
)

// ConversionSummary aggregates a shop's conversion history
type ConversionSummary struct {
	TotalConversions int64           `json:"total_conversions"`
	TotalSavings     decimal.Decimal `json:"total_savings"`
}

// ConversionQueryService serves the read side of the conversion ledger:
// the paged history listing (including the failed-edit reconciliation view)
// and the savings summary.
type ConversionQueryService struct {
	conversionRepo bundling.OrderConversionRepository
	logger         *zap.Logger
}

// NewConversionQueryService creates a new ConversionQueryService
func NewConversionQueryService(conversionRepo bundling.OrderConversionRepository, logger *zap.Logger) *ConversionQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionQueryService{conversionRepo: conversionRepo, logger: logger}
}

// List pages through a shop's conversions, optionally filtered by edit
// status. Filtering on failed is the reconciliation surface for rewrites
// that never reached the platform.
func (s *ConversionQueryService) List(ctx context.Context, shopID uuid.UUID, editStatus *bundling.EditStatus, filter shared.Filter) (shared.Paginated[bundling.OrderConversion], error) {
	return s.conversionRepo.FindByShop(ctx, shopID, editStatus, filter)
}

// Summary returns the shop's lifetime conversion count and recorded savings
func (s *ConversionQueryService) Summary(ctx context.Context, shopID uuid.UUID) (*ConversionSummary, error) {
	count, err := s.conversionRepo.CountByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	savings, err := s.conversionRepo.SumSavingsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return &ConversionSummary{
		TotalConversions: count,
		TotalSavings:     savings,
	}, nil
}
