package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/infrastructure/persistence"
)

func createRule(t *testing.T, tdb *TestDB, shopID uuid.UUID, name string, members []string, bundledSKU string) *bundling.BundleRule {
	t.Helper()

	rule, err := bundling.NewBundleRule(shopID, name, members, bundledSKU, decimal.RequireFromString("5.00"))
	require.NoError(t, err)

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	require.NoError(t, repo.Create(context.Background(), rule))
	return rule
}

func TestBundleRuleRepository_CreateAndFind(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	sh := createShop(t, tdb, "rules.myshopify.com")
	rule := createRule(t, tdb, sh.ID, "Breakfast Kit", []string{"SKU-A", "SKU-B"}, "BUNDLE-1")

	found, err := repo.FindByID(ctx, sh.ID, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Breakfast Kit", found.Name)
	assert.Equal(t, []string{"SKU-A", "SKU-B"}, found.Members)
	assert.Equal(t, "BUNDLE-1", found.BundledSKU)
	assert.True(t, found.Savings.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, bundling.RuleStatusActive, found.Status)
}

func TestBundleRuleRepository_ShopScoping(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	owner := createShop(t, tdb, "owner.myshopify.com")
	other := createShop(t, tdb, "other.myshopify.com")
	rule := createRule(t, tdb, owner.ID, "Kit", []string{"SKU-A"}, "BUNDLE-1")

	// Another shop's ID must not see the rule
	_, err := repo.FindByID(ctx, other.ID, rule.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestBundleRuleRepository_FindActiveByShop(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	sh := createShop(t, tdb, "active.myshopify.com")
	first := createRule(t, tdb, sh.ID, "First", []string{"SKU-A"}, "BUNDLE-1")
	second := createRule(t, tdb, sh.ID, "Second", []string{"SKU-B"}, "BUNDLE-2")

	paused := createRule(t, tdb, sh.ID, "Paused", []string{"SKU-C"}, "BUNDLE-3")
	paused.Deactivate()
	require.NoError(t, repo.Update(ctx, paused))

	active, err := repo.FindActiveByShop(ctx, sh.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)

	// Creation order is the matcher's evaluation order
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
}

func TestBundleRuleRepository_FindByShopStatusFilter(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	sh := createShop(t, tdb, "filter.myshopify.com")
	createRule(t, tdb, sh.ID, "Live", []string{"SKU-A"}, "BUNDLE-1")
	paused := createRule(t, tdb, sh.ID, "Paused", []string{"SKU-B"}, "BUNDLE-2")
	paused.Deactivate()
	require.NoError(t, repo.Update(ctx, paused))

	inactive := bundling.RuleStatusInactive
	page, err := repo.FindByShop(ctx, sh.ID, &inactive, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Paused", page.Items[0].Name)

	all, err := repo.FindByShop(ctx, sh.ID, nil, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
}

func TestBundleRuleRepository_IncrementMatchCount(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	sh := createShop(t, tdb, "counter.myshopify.com")
	rule := createRule(t, tdb, sh.ID, "Kit", []string{"SKU-A"}, "BUNDLE-1")

	require.NoError(t, repo.IncrementMatchCount(ctx, rule.ID))
	require.NoError(t, repo.IncrementMatchCount(ctx, rule.ID))

	found, err := repo.FindByID(ctx, sh.ID, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.MatchCount)
}

func TestBundleRuleRepository_Delete(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	repo := persistence.NewGormBundleRuleRepository(tdb.DB)
	ctx := context.Background()

	sh := createShop(t, tdb, "delete.myshopify.com")
	rule := createRule(t, tdb, sh.ID, "Doomed", []string{"SKU-A"}, "BUNDLE-1")

	require.NoError(t, repo.Delete(ctx, sh.ID, rule.ID))

	_, err := repo.FindByID(ctx, sh.ID, rule.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// Deleting again reports not found
	err = repo.Delete(ctx, sh.ID, rule.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
