// Package shop implements the install lifecycle and per-shop settings.
package shop

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/domain/shop"
)

// ShopService handles install, uninstall, and notification settings.
type ShopService struct {
	shopRepo shop.Repository
	ruleRepo bundling.BundleRuleRepository
	logger   *zap.Logger
}

// NewShopService creates a new ShopService
func NewShopService(shopRepo shop.Repository, ruleRepo bundling.BundleRuleRepository, logger *zap.Logger) *ShopService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopService{
		shopRepo: shopRepo,
		ruleRepo: ruleRepo,
		logger:   logger,
	}
}

// Install records a completed OAuth install. A returning shop is
// reactivated with its fresh token; its rules stay as the uninstall left
// them (deactivated) until the merchant turns them back on.
func (s *ShopService) Install(ctx context.Context, domain, accessToken string) (*shop.Shop, error) {
	normalized, err := shop.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	existing, err := s.shopRepo.FindByDomain(ctx, normalized)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := existing.Reinstall(accessToken); err != nil {
			return nil, err
		}
		if err := s.shopRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("shop reinstalled", zap.String("shop_domain", normalized))
		return existing, nil
	}

	created, err := shop.NewShop(normalized, accessToken)
	if err != nil {
		return nil, err
	}
	if err := s.shopRepo.Create(ctx, created); err != nil {
		return nil, err
	}
	s.logger.Info("shop installed", zap.String("shop_domain", normalized))
	return created, nil
}

// Uninstall handles the app/uninstalled webhook: the shop is marked
// uninstalled (token cleared) and its active rules are deactivated so a
// later reinstall starts quiet.
func (s *ShopService) Uninstall(ctx context.Context, domain string) error {
	sh, err := s.shopRepo.FindByDomain(ctx, domain)
	if err != nil {
		return err
	}

	sh.MarkUninstalled()
	if err := s.shopRepo.Update(ctx, sh); err != nil {
		return err
	}

	rules, err := s.ruleRepo.FindActiveByShop(ctx, sh.ID)
	if err != nil {
		s.logger.Warn("could not list rules to deactivate on uninstall",
			zap.String("shop_domain", domain),
			zap.Error(err))
		return nil
	}
	for i := range rules {
		rule := &rules[i]
		rule.Deactivate()
		if err := s.ruleRepo.Update(ctx, rule); err != nil {
			s.logger.Warn("could not deactivate rule on uninstall",
				zap.String("shop_domain", domain),
				zap.String("rule_id", rule.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("shop uninstalled",
		zap.String("shop_domain", domain),
		zap.Int("rules_deactivated", len(rules)))
	return nil
}

// Get fetches a shop by ID
func (s *ShopService) Get(ctx context.Context, id uuid.UUID) (*shop.Shop, error) {
	return s.shopRepo.FindByID(ctx, id)
}

// GetByDomain fetches a shop by its normalized myshopify domain
func (s *ShopService) GetByDomain(ctx context.Context, domain string) (*shop.Shop, error) {
	normalized, err := shop.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	return s.shopRepo.FindByDomain(ctx, normalized)
}

// UpdateNotificationSettings replaces the shop's notification preferences
func (s *ShopService) UpdateNotificationSettings(ctx context.Context, shopID uuid.UUID, settings shop.NotificationSettings) (*shop.Shop, error) {
	sh, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if err := sh.UpdateNotifications(settings); err != nil {
		return nil, err
	}
	if err := s.shopRepo.Update(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}
