// Package billing implements the quota gate and subscription-tier lookup
// for the conversion pipeline.
package billing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/billing"
	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/platform"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/infrastructure/config"
)

// QuotaService computes a shop's monthly allowance snapshot and gates new
// conversions against it. Tier resolution asks the platform for the active
// subscription and degrades to the tier cached on the shop record; usage is
// counted from the conversion ledger on every check, never stored.
type QuotaService struct {
	conversionRepo bundling.OrderConversionRepository
	shopRepo       shop.Repository
	clients        platform.ClientFactory
	logger         *zap.Logger

	includeTestSubscriptions bool
	disabled                 bool

	// now is injectable for tests
	now func() time.Time
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(
	conversionRepo bundling.OrderConversionRepository,
	shopRepo shop.Repository,
	clients platform.ClientFactory,
	billingCfg config.BillingConfig,
	quotaCfg config.QuotaConfig,
	logger *zap.Logger,
) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{
		conversionRepo:           conversionRepo,
		shopRepo:                 shopRepo,
		clients:                  clients,
		logger:                   logger,
		includeTestSubscriptions: billingCfg.IncludeTestSubscriptions,
		disabled:                 quotaCfg.Disabled,
		now:                      time.Now,
	}
}

// Snapshot computes the shop's current quota view: resolved tier, monthly
// allowance, and conversions used in the current UTC calendar month.
func (s *QuotaService) Snapshot(ctx context.Context, sh *shop.Shop) (billing.QuotaSnapshot, error) {
	tier := s.resolveTier(ctx, sh)
	start, end := billing.MonthWindow(s.now())

	used, err := s.conversionRepo.CountByShopBetween(ctx, sh.ID, start, end)
	if err != nil {
		return billing.QuotaSnapshot{}, err
	}

	return billing.QuotaSnapshot{
		Tier:        tier,
		Allowance:   tier.MonthlyAllowance(),
		Used:        used,
		PeriodStart: start,
		PeriodEnd:   end,
	}, nil
}

// Authorize decides whether one more conversion may be recorded for the
// shop. A shop at or over its allowance gets shared.ErrQuotaExceeded. A
// usage-count failure fails open: blocking real conversions over a transient
// read error costs the merchant money, while letting one extra through does
// not.
func (s *QuotaService) Authorize(ctx context.Context, sh *shop.Shop) error {
	if s.disabled {
		return nil
	}

	snapshot, err := s.Snapshot(ctx, sh)
	if err != nil {
		s.logger.Warn("quota usage lookup failed, allowing conversion",
			zap.String("shop_id", sh.ID.String()),
			zap.Error(err))
		return nil
	}

	if !snapshot.WithinLimit() {
		s.logger.Info("monthly conversion allowance exhausted",
			zap.String("shop_id", sh.ID.String()),
			zap.String("tier", snapshot.Tier.String()),
			zap.Int64("used", snapshot.Used),
			zap.Int64("allowance", snapshot.Allowance))
		return shared.ErrQuotaExceeded
	}
	return nil
}

// resolveTier determines the shop's plan tier. The live subscription wins;
// when the platform cannot answer, the tier cached on the shop record is
// used so a billing-API outage does not reset everyone to free.
func (s *QuotaService) resolveTier(ctx context.Context, sh *shop.Shop) billing.PlanTier {
	cached := billing.ParseTier(sh.CachedTier)

	client, err := s.clients.ForShop(sh.Domain, sh.AccessToken)
	if err != nil {
		return cached
	}

	sub, err := client.ActiveSubscription(ctx)
	if err != nil {
		s.logger.Warn("subscription lookup failed, using cached tier",
			zap.String("shop_id", sh.ID.String()),
			zap.String("cached_tier", cached.String()),
			zap.Error(err))
		return cached
	}

	tier := billing.PlanTierFree
	if sub != nil && sub.Status.IsActive() && (s.includeTestSubscriptions || !sub.Test) {
		tier = billing.TierForPlanName(sub.Name)
	}

	s.cacheTier(ctx, sh, tier)
	return tier
}

// cacheTier stores the freshly resolved tier on the shop record, best
// effort. The next lookup outage will then degrade to this value.
func (s *QuotaService) cacheTier(ctx context.Context, sh *shop.Shop, tier billing.PlanTier) {
	if sh.CachedTier == tier.String() {
		return
	}
	sh.SetCachedTier(tier.String())
	if err := s.shopRepo.Update(ctx, sh); err != nil {
		s.logger.Warn("failed to cache resolved tier",
			zap.String("shop_id", sh.ID.String()),
			zap.String("tier", tier.String()),
			zap.Error(err))
	}
}
