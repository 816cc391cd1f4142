package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/infrastructure/persistence/models"
)

// GormOrderConversionRepository implements bundling.OrderConversionRepository
// using GORM. The (shop_id, order_id) unique index makes Create the
// at-most-once gate for the conversion ledger.
type GormOrderConversionRepository struct {
	db *gorm.DB
}

// NewGormOrderConversionRepository creates a new GormOrderConversionRepository
func NewGormOrderConversionRepository(db *gorm.DB) *GormOrderConversionRepository {
	return &GormOrderConversionRepository{db: db}
}

// FindByShopAndOrder finds the conversion recorded for an order, if any
func (r *GormOrderConversionRepository) FindByShopAndOrder(ctx context.Context, shopID uuid.UUID, orderID int64) (*bundling.OrderConversion, error) {
	var model models.OrderConversionModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND order_id = ?", shopID, orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByShop pages through a shop's conversion history, newest first by
// default, optionally filtered by edit status
func (r *GormOrderConversionRepository) FindByShop(ctx context.Context, shopID uuid.UUID, editStatus *bundling.EditStatus, filter shared.Filter) (shared.Paginated[bundling.OrderConversion], error) {
	query := r.db.WithContext(ctx).
		Model(&models.OrderConversionModel{}).
		Where("shop_id = ?", shopID)
	if editStatus != nil {
		query = query.Where("edit_status = ?", *editStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[bundling.OrderConversion]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, OrderConversionSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var modelList []models.OrderConversionModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&modelList).Error; err != nil {
		return shared.Paginated[bundling.OrderConversion]{}, err
	}

	conversions := make([]bundling.OrderConversion, 0, len(modelList))
	for i := range modelList {
		conversions = append(conversions, *modelList[i].ToDomain())
	}
	return shared.NewPaginated(conversions, total, filter.Page, filter.PageSize), nil
}

// Create inserts a conversion record. A second insert for the same
// (shop_id, order_id) returns shared.ErrAlreadyExists; the caller treats
// that as a duplicate delivery, not a failure.
func (r *GormOrderConversionRepository) Create(ctx context.Context, conversion *bundling.OrderConversion) error {
	model := models.OrderConversionModelFromDomain(conversion)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateEditOutcome persists only the mutable part of a conversion: the
// edit status and failed phase. Order identity, the matched rule, and the
// recorded savings never change after Create.
func (r *GormOrderConversionRepository) UpdateEditOutcome(ctx context.Context, conversion *bundling.OrderConversion) error {
	var failedPhase *string
	if conversion.FailedPhase != nil {
		phase := conversion.FailedPhase.String()
		failedPhase = &phase
	}

	result := r.db.WithContext(ctx).
		Model(&models.OrderConversionModel{}).
		Where("id = ?", conversion.ID).
		Updates(map[string]interface{}{
			"edit_status":  conversion.EditStatus,
			"failed_phase": failedPhase,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByShopBetween counts conversions recorded in [from, to). This is the
// usage side of the quota check, so it counts every ledger row regardless of
// edit outcome.
func (r *GormOrderConversionRepository) CountByShopBetween(ctx context.Context, shopID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderConversionModel{}).
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, from, to).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByShop counts all conversions ever recorded for a shop
func (r *GormOrderConversionRepository) CountByShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderConversionModel{}).
		Where("shop_id = ?", shopID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumSavingsByShop totals the savings recorded across a shop's conversions
func (r *GormOrderConversionRepository) SumSavingsByShop(ctx context.Context, shopID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.OrderConversionModel{}).
		Select("COALESCE(SUM(savings), 0)").
		Where("shop_id = ?", shopID).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Ensure GormOrderConversionRepository implements OrderConversionRepository
var _ bundling.OrderConversionRepository = (*GormOrderConversionRepository)(nil)
