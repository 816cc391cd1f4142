package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bundlingapp "github.com/bundlewise/backend/internal/application/bundling"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/interfaces/http/dto"
)

func newRuleFixture(t *testing.T) (*RuleHandler, *fakeRuleRepo, *fakeShopRepo) {
	t.Helper()
	sh := activeTestShop(t)
	shopRepo := newFakeShopRepo(sh)
	ruleRepo := newFakeRuleRepo()
	shops := shopapp.NewShopService(shopRepo, ruleRepo, nopLogger())
	rules := bundlingapp.NewRuleService(ruleRepo, nopLogger())
	return NewRuleHandler(rules, shops, nopLogger()), ruleRepo, shopRepo
}

func seedRule(t *testing.T, repo *fakeRuleRepo, shopRepo *fakeShopRepo, name string) *bundling.BundleRule {
	t.Helper()
	sh := shopRepo.byDomain["demo.myshopify.com"]
	require.NotNil(t, sh)
	rule, err := bundling.NewBundleRule(sh.ID, name,
		[]string{"SKU-A", "SKU-B"}, "BUNDLE-1", decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	repo.rules[rule.ID] = rule
	return rule
}

func TestRuleHandler_Create(t *testing.T) {
	h, repo, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	body := `{"name":"Starter Kit","members":["SKU-A","SKU-B"],"bundled_sku":"BUNDLE-1","savings":"5.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Starter Kit", data["name"])
	assert.Equal(t, "BUNDLE-1", data["bundled_sku"])
	assert.Equal(t, "active", data["status"])
	assert.Len(t, repo.rules, 1)
}

func TestRuleHandler_Create_ValidationFailure(t *testing.T) {
	h, repo, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	// Missing bundled_sku
	body := `{"name":"Starter Kit","members":["SKU-A"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.rules)
}

func TestRuleHandler_Create_BlankMembersRejected(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	// Passes binding (one element) but normalizes to an empty member set
	body := `{"name":"Kit","members":["   "],"bundled_sku":"BUNDLE-1","savings":"0"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleHandler_List(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	seedRule(t, repo, shopRepo, "Rule One")
	second := seedRule(t, repo, shopRepo, "Rule Two")
	second.Deactivate()

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
}

func TestRuleHandler_List_StatusFilter(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	seedRule(t, repo, shopRepo, "Active Rule")
	inactive := seedRule(t, repo, shopRepo, "Inactive Rule")
	inactive.Deactivate()

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules?status=inactive", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Meta.Total)
	require.NotNil(t, repo.lastStatus)
	assert.Equal(t, bundling.RuleStatusInactive, *repo.lastStatus)
}

func TestRuleHandler_List_InvalidStatus(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules?status=bogus", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleHandler_List_Pagination(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	seedRule(t, repo, shopRepo, "Rule")

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules?page=2&page_size=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, repo.lastFilter.Page)
	assert.Equal(t, 5, repo.lastFilter.PageSize)
}

func TestRuleHandler_Get(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	rule := seedRule(t, repo, shopRepo, "Starter Kit")

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/"+rule.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, rule.ID.String(), data["id"])
}

func TestRuleHandler_Get_NotFound(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/00000000-0000-0000-0000-000000000001", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuleHandler_Get_InvalidID(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "demo.myshopify.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleHandler_Update(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	rule := seedRule(t, repo, shopRepo, "Old Name")

	r := newAPIRouter(h, "demo.myshopify.com")
	body := `{"name":"New Name","members":["SKU-A","SKU-C"],"bundled_sku":"BUNDLE-2","savings":"7.50"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/rules/"+rule.ID.String(), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "New Name", repo.rules[rule.ID].Name)
	assert.Equal(t, "BUNDLE-2", repo.rules[rule.ID].BundledSKU)
}

func TestRuleHandler_Delete(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	rule := seedRule(t, repo, shopRepo, "Doomed")

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rules/"+rule.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.rules)
}

func TestRuleHandler_ActivateDeactivate(t *testing.T) {
	h, repo, shopRepo := newRuleFixture(t)
	rule := seedRule(t, repo, shopRepo, "Toggle Me")

	r := newAPIRouter(h, "demo.myshopify.com")

	for _, tt := range []struct {
		action string
		want   bundling.RuleStatus
	}{
		{"deactivate", bundling.RuleStatusInactive},
		{"activate", bundling.RuleStatusActive},
	} {
		t.Run(tt.action, func(t *testing.T) {
			url := fmt.Sprintf("/api/v1/rules/%s/%s", rule.ID, tt.action)
			req := httptest.NewRequest(http.MethodPost, url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, repo.rules[rule.ID].Status)
		})
	}
}

func TestRuleHandler_NoSession(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRuleHandler_UnknownShop(t *testing.T) {
	h, _, _ := newRuleFixture(t)
	r := newAPIRouter(h, "stranger.myshopify.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRuleHandler_UninstalledShop(t *testing.T) {
	h, _, shopRepo := newRuleFixture(t)
	shopRepo.byDomain["demo.myshopify.com"].MarkUninstalled()

	r := newAPIRouter(h, "demo.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
