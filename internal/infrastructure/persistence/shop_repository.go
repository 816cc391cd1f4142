package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/infrastructure/persistence/models"
)

// GormShopRepository implements shop.Repository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByID finds a shop by ID
func (r *GormShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*shop.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDomain finds a shop by its myshopify domain. Callers normalize the
// domain before lookup; this query is an exact match.
func (r *GormShopRepository) FindByDomain(ctx context.Context, domain string) (*shop.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("domain = ?", domain).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new shop
func (r *GormShopRepository) Create(ctx context.Context, s *shop.Shop) error {
	model := models.ShopModelFromDomain(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing shop
func (r *GormShopRepository) Update(ctx context.Context, s *shop.Shop) error {
	model := models.ShopModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&models.ShopModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"access_token":             model.AccessToken,
			"status":                   model.Status,
			"cached_tier":              model.CachedTier,
			"notify_email_enabled":     model.NotifyEmailEnabled,
			"notify_email_address":     model.NotifyEmailAddress,
			"notify_slack_enabled":     model.NotifySlackEnabled,
			"notify_slack_webhook_url": model.NotifySlackWebhookURL,
			"updated_at":               model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormShopRepository implements shop.Repository
var _ shop.Repository = (*GormShopRepository)(nil)
