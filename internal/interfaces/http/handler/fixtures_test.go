package handler

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/interfaces/http/middleware"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeShopRepo struct {
	shop.Repository
	byID     map[uuid.UUID]*shop.Shop
	byDomain map[string]*shop.Shop
	findErr  error
}

func newFakeShopRepo(shops ...*shop.Shop) *fakeShopRepo {
	repo := &fakeShopRepo{
		byID:     make(map[uuid.UUID]*shop.Shop),
		byDomain: make(map[string]*shop.Shop),
	}
	for _, s := range shops {
		repo.byID[s.ID] = s
		repo.byDomain[s.Domain] = s
	}
	return repo
}

func (f *fakeShopRepo) FindByID(ctx context.Context, id uuid.UUID) (*shop.Shop, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeShopRepo) FindByDomain(ctx context.Context, domain string) (*shop.Shop, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if s, ok := f.byDomain[domain]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeShopRepo) Update(ctx context.Context, s *shop.Shop) error {
	f.byID[s.ID] = s
	f.byDomain[s.Domain] = s
	return nil
}

type fakeRuleRepo struct {
	bundling.BundleRuleRepository
	rules      map[uuid.UUID]*bundling.BundleRule
	createErr  error
	listErr    error
	lastStatus *bundling.RuleStatus
	lastFilter shared.Filter
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[uuid.UUID]*bundling.BundleRule)}
}

func (f *fakeRuleRepo) FindByID(ctx context.Context, shopID, id uuid.UUID) (*bundling.BundleRule, error) {
	rule, ok := f.rules[id]
	if !ok || rule.ShopID != shopID {
		return nil, shared.ErrNotFound
	}
	return rule, nil
}

func (f *fakeRuleRepo) FindActiveByShop(ctx context.Context, shopID uuid.UUID) ([]bundling.BundleRule, error) {
	var out []bundling.BundleRule
	for _, rule := range f.rules {
		if rule.ShopID == shopID && rule.IsActive() {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) FindByShop(ctx context.Context, shopID uuid.UUID, status *bundling.RuleStatus, filter shared.Filter) (shared.Paginated[bundling.BundleRule], error) {
	if f.listErr != nil {
		return shared.Paginated[bundling.BundleRule]{}, f.listErr
	}
	f.lastStatus = status
	f.lastFilter = filter
	var items []bundling.BundleRule
	for _, rule := range f.rules {
		if rule.ShopID != shopID {
			continue
		}
		if status != nil && rule.Status != *status {
			continue
		}
		items = append(items, *rule)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *bundling.BundleRule) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Update(ctx context.Context, rule *bundling.BundleRule) error {
	if _, ok := f.rules[rule.ID]; !ok {
		return shared.ErrNotFound
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Delete(ctx context.Context, shopID, id uuid.UUID) error {
	rule, ok := f.rules[id]
	if !ok || rule.ShopID != shopID {
		return shared.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeRuleRepo) IncrementMatchCount(ctx context.Context, id uuid.UUID) error {
	if rule, ok := f.rules[id]; ok {
		rule.MatchCount++
	}
	return nil
}

type fakeConversionRepo struct {
	bundling.OrderConversionRepository
	byOrder    map[int64]*bundling.OrderConversion
	count      int64
	countErr   error
	savings    string
	lastStatus *bundling.EditStatus
}

func newFakeConversionRepo() *fakeConversionRepo {
	return &fakeConversionRepo{byOrder: make(map[int64]*bundling.OrderConversion), savings: "0"}
}

func (f *fakeConversionRepo) FindByShopAndOrder(ctx context.Context, shopID uuid.UUID, orderID int64) (*bundling.OrderConversion, error) {
	if conv, ok := f.byOrder[orderID]; ok && conv.ShopID == shopID {
		return conv, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeConversionRepo) FindByShop(ctx context.Context, shopID uuid.UUID, editStatus *bundling.EditStatus, filter shared.Filter) (shared.Paginated[bundling.OrderConversion], error) {
	f.lastStatus = editStatus
	var items []bundling.OrderConversion
	for _, conv := range f.byOrder {
		if conv.ShopID != shopID {
			continue
		}
		if editStatus != nil && conv.EditStatus != *editStatus {
			continue
		}
		items = append(items, *conv)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (f *fakeConversionRepo) Create(ctx context.Context, conv *bundling.OrderConversion) error {
	if _, ok := f.byOrder[conv.OrderID]; ok {
		return shared.ErrAlreadyExists
	}
	f.byOrder[conv.OrderID] = conv
	return nil
}

func (f *fakeConversionRepo) UpdateEditOutcome(ctx context.Context, conv *bundling.OrderConversion) error {
	f.byOrder[conv.OrderID] = conv
	return nil
}

func (f *fakeConversionRepo) CountByShopBetween(ctx context.Context, shopID uuid.UUID, from, to time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeConversionRepo) CountByShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeConversionRepo) SumSavingsByShop(ctx context.Context, shopID uuid.UUID) (decimal.Decimal, error) {
	return decimal.RequireFromString(f.savings), nil
}

type fakeDedupeStore struct {
	seen    map[string]bool
	markErr error
}

func newFakeDedupeStore() *fakeDedupeStore {
	return &fakeDedupeStore{seen: make(map[string]bool)}
}

func (f *fakeDedupeStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeDedupeStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedupeStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func activeTestShop(t *testing.T) *shop.Shop {
	t.Helper()
	sh, err := shop.NewShop("demo.myshopify.com", "shpat_token")
	require.NoError(t, err)
	return sh
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

// newAPIRouter builds a test engine with the session shop domain injected,
// simulating a verified session token
func newAPIRouter(registrar interface{ RegisterRoutes(*gin.RouterGroup) }, shopDomain string) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1")
	if shopDomain != "" {
		api.Use(func(c *gin.Context) {
			c.Set(middleware.SessionShopDomainKey, shopDomain)
			c.Next()
		})
	}
	registrar.RegisterRoutes(api)
	return r
}
