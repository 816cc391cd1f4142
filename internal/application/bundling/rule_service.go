package bundling

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
)

// RuleInput carries the merchant-editable fields of a bundle rule
type RuleInput struct {
	Name       string
	Members    []string
	BundledSKU string
	Savings    decimal.Decimal
}

// RuleService handles the admin CRUD surface for bundle rules. All
// operations are scoped to the calling shop; the pipeline itself only ever
// touches rules through the repository's counter increment.
type RuleService struct {
	ruleRepo bundling.BundleRuleRepository
	logger   *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(ruleRepo bundling.BundleRuleRepository, logger *zap.Logger) *RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{ruleRepo: ruleRepo, logger: logger}
}

// List pages through a shop's rules, optionally filtered by status
func (s *RuleService) List(ctx context.Context, shopID uuid.UUID, status *bundling.RuleStatus, filter shared.Filter) (shared.Paginated[bundling.BundleRule], error) {
	return s.ruleRepo.FindByShop(ctx, shopID, status, filter)
}

// Get fetches one rule by ID
func (s *RuleService) Get(ctx context.Context, shopID, id uuid.UUID) (*bundling.BundleRule, error) {
	return s.ruleRepo.FindByID(ctx, shopID, id)
}

// Create validates and stores a new active rule
func (s *RuleService) Create(ctx context.Context, shopID uuid.UUID, input RuleInput) (*bundling.BundleRule, error) {
	rule, err := bundling.NewBundleRule(shopID, input.Name, input.Members, input.BundledSKU, input.Savings)
	if err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("bundle rule created",
		zap.String("shop_id", shopID.String()),
		zap.String("rule_id", rule.ID.String()),
		zap.String("bundled_sku", rule.BundledSKU))
	return rule, nil
}

// Update replaces the merchant-editable fields of an existing rule
func (s *RuleService) Update(ctx context.Context, shopID, id uuid.UUID, input RuleInput) (*bundling.BundleRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if err := rule.Update(input.Name, input.Members, input.BundledSKU, input.Savings); err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Delete removes a rule. Only the admin surface deletes; recorded
// conversions keep their captured copy of the rule's financial fields.
func (s *RuleService) Delete(ctx context.Context, shopID, id uuid.UUID) error {
	if err := s.ruleRepo.Delete(ctx, shopID, id); err != nil {
		return err
	}
	s.logger.Info("bundle rule deleted",
		zap.String("shop_id", shopID.String()),
		zap.String("rule_id", id.String()))
	return nil
}

// Activate makes the rule eligible for matching again
func (s *RuleService) Activate(ctx context.Context, shopID, id uuid.UUID) (*bundling.BundleRule, error) {
	return s.setStatus(ctx, shopID, id, true)
}

// Deactivate withdraws the rule from matching without deleting it
func (s *RuleService) Deactivate(ctx context.Context, shopID, id uuid.UUID) (*bundling.BundleRule, error) {
	return s.setStatus(ctx, shopID, id, false)
}

func (s *RuleService) setStatus(ctx context.Context, shopID, id uuid.UUID, active bool) (*bundling.BundleRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if active {
		rule.Activate()
	} else {
		rule.Deactivate()
	}
	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}
