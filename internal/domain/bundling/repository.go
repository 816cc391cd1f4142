package bundling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bundlewise/backend/internal/domain/shared"
)

// BundleRuleRepository persists bundle rules. Implementations map storage
// errors onto shared sentinels (shared.ErrNotFound and friends).
type BundleRuleRepository interface {
	// FindByID returns a rule scoped to the owning shop
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*BundleRule, error)

	// FindActiveByShop returns the shop's active rules in creation order,
	// which is the order the matcher evaluates them in
	FindActiveByShop(ctx context.Context, shopID uuid.UUID) ([]BundleRule, error)

	// FindByShop pages through a shop's rules, optionally by status
	FindByShop(ctx context.Context, shopID uuid.UUID, status *RuleStatus, filter shared.Filter) (shared.Paginated[BundleRule], error)

	// Create inserts a new rule
	Create(ctx context.Context, rule *BundleRule) error

	// Update persists merchant edits to an existing rule
	Update(ctx context.Context, rule *BundleRule) error

	// Delete removes a rule. Only the admin API calls this; the
	// conversion pipeline never deletes rules.
	Delete(ctx context.Context, shopID, id uuid.UUID) error

	// IncrementMatchCount atomically bumps the rule's frequency counter
	IncrementMatchCount(ctx context.Context, id uuid.UUID) error
}

// OrderConversionRepository persists the conversion ledger.
type OrderConversionRepository interface {
	// FindByShopAndOrder returns the conversion for one order, or
	// shared.ErrNotFound when the order was never converted
	FindByShopAndOrder(ctx context.Context, shopID uuid.UUID, orderID int64) (*OrderConversion, error)

	// FindByShop pages through a shop's conversions, newest first,
	// optionally filtered by edit status (the reconciliation listing)
	FindByShop(ctx context.Context, shopID uuid.UUID, editStatus *EditStatus, filter shared.Filter) (shared.Paginated[OrderConversion], error)

	// Create inserts the ledger record. A uniqueness violation on
	// (shop, order) must surface as shared.ErrAlreadyExists so concurrent
	// duplicate deliveries read as "already converted", never as a fault.
	Create(ctx context.Context, conversion *OrderConversion) error

	// UpdateEditOutcome persists the edit status and failed phase.
	// The financial fields are never updated.
	UpdateEditOutcome(ctx context.Context, conversion *OrderConversion) error

	// CountByShopBetween counts conversions created in [from, to),
	// which the quota gate uses for the calendar-month window
	CountByShopBetween(ctx context.Context, shopID uuid.UUID, from, to time.Time) (int64, error)

	// CountByShop counts all conversions for a shop
	CountByShop(ctx context.Context, shopID uuid.UUID) (int64, error)

	// SumSavingsByShop totals the recorded savings for a shop
	SumSavingsByShop(ctx context.Context, shopID uuid.UUID) (decimal.Decimal, error)
}
