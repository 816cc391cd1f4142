package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/infrastructure/persistence/models"
)

// GormBundleRuleRepository implements bundling.BundleRuleRepository using GORM
type GormBundleRuleRepository struct {
	db *gorm.DB
}

// NewGormBundleRuleRepository creates a new GormBundleRuleRepository
func NewGormBundleRuleRepository(db *gorm.DB) *GormBundleRuleRepository {
	return &GormBundleRuleRepository{db: db}
}

// FindByID finds a rule by ID, scoped to the owning shop
func (r *GormBundleRuleRepository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*bundling.BundleRule, error) {
	var model models.BundleRuleModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND id = ?", shopID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByShop returns the shop's active rules in creation order.
// Creation order is the evaluation order of the matcher, so it is fixed
// here rather than left to the caller.
func (r *GormBundleRuleRepository) FindActiveByShop(ctx context.Context, shopID uuid.UUID) ([]bundling.BundleRule, error) {
	var modelList []models.BundleRuleModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status = ?", shopID, bundling.RuleStatusActive).
		Order("created_at ASC, id ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	rules := make([]bundling.BundleRule, 0, len(modelList))
	for i := range modelList {
		rules = append(rules, *modelList[i].ToDomain())
	}
	return rules, nil
}

// FindByShop pages through a shop's rules, optionally filtered by status
func (r *GormBundleRuleRepository) FindByShop(ctx context.Context, shopID uuid.UUID, status *bundling.RuleStatus, filter shared.Filter) (shared.Paginated[bundling.BundleRule], error) {
	query := r.db.WithContext(ctx).
		Model(&models.BundleRuleModel{}).
		Where("shop_id = ?", shopID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[bundling.BundleRule]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, BundleRuleSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var modelList []models.BundleRuleModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&modelList).Error; err != nil {
		return shared.Paginated[bundling.BundleRule]{}, err
	}

	rules := make([]bundling.BundleRule, 0, len(modelList))
	for i := range modelList {
		rules = append(rules, *modelList[i].ToDomain())
	}
	return shared.NewPaginated(rules, total, filter.Page, filter.PageSize), nil
}

// Create inserts a new rule
func (r *GormBundleRuleRepository) Create(ctx context.Context, rule *bundling.BundleRule) error {
	model := models.BundleRuleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists merchant edits to an existing rule
func (r *GormBundleRuleRepository) Update(ctx context.Context, rule *bundling.BundleRule) error {
	model := models.BundleRuleModelFromDomain(rule)
	result := r.db.WithContext(ctx).
		Model(&models.BundleRuleModel{}).
		Where("shop_id = ? AND id = ?", rule.ShopID, rule.ID).
		Updates(map[string]interface{}{
			"name":        model.Name,
			"members":     model.MembersJSON,
			"bundled_sku": model.BundledSKU,
			"savings":     model.Savings,
			"status":      model.Status,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a rule. Admin API only; the pipeline never deletes rules.
func (r *GormBundleRuleRepository) Delete(ctx context.Context, shopID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("shop_id = ? AND id = ?", shopID, id).
		Delete(&models.BundleRuleModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IncrementMatchCount atomically bumps the rule's frequency counter.
// The increment happens in SQL so concurrent matches never lose updates.
func (r *GormBundleRuleRepository) IncrementMatchCount(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.BundleRuleModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"match_count": gorm.Expr("match_count + 1"),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormBundleRuleRepository implements BundleRuleRepository
var _ bundling.BundleRuleRepository = (*GormBundleRuleRepository)(nil)
