package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bundlingapp "github.com/bundlewise/backend/internal/application/bundling"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/interfaces/http/dto"
	"github.com/bundlewise/backend/internal/interfaces/http/middleware"
)

// RuleHandler exposes the bundle rule CRUD surface of the admin API
type RuleHandler struct {
	BaseHandler
	rules  *bundlingapp.RuleService
	shops  *shopapp.ShopService
	logger *zap.Logger
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules *bundlingapp.RuleService, shops *shopapp.ShopService, logger *zap.Logger) *RuleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleHandler{rules: rules, shops: shops, logger: logger}
}

// RegisterRoutes registers bundle rule endpoints on the API group
func (h *RuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rules := rg.Group("/rules")
	{
		rules.GET("", h.List)
		rules.POST("", h.Create)
		rules.GET("/:id", h.Get)
		rules.PUT("/:id", h.Update)
		rules.DELETE("/:id", h.Delete)
		rules.POST("/:id/activate", h.Activate)
		rules.POST("/:id/deactivate", h.Deactivate)
	}
}

// RuleRequest carries the merchant-editable fields of a bundle rule
type RuleRequest struct {
	Name       string          `json:"name" binding:"required,max=255"`
	Members    []string        `json:"members" binding:"required,min=1,dive,max=255"`
	BundledSKU string          `json:"bundled_sku" binding:"required,max=255"`
	Savings    decimal.Decimal `json:"savings"`
}

// RuleResponse represents a bundle rule in API responses
type RuleResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Members    []string        `json:"members"`
	BundledSKU string          `json:"bundled_sku"`
	Savings    decimal.Decimal `json:"savings"`
	Status     string          `json:"status"`
	MatchCount int64           `json:"match_count"`
	dto.TimestampResponse
}

func toRuleResponse(rule *bundling.BundleRule) RuleResponse {
	return RuleResponse{
		ID:         rule.ID.String(),
		Name:       rule.Name,
		Members:    rule.Members,
		BundledSKU: rule.BundledSKU,
		Savings:    rule.Savings,
		Status:     rule.Status.String(),
		MatchCount: rule.MatchCount,
		TimestampResponse: dto.TimestampResponse{
			CreatedAt: rule.CreatedAt,
			UpdatedAt: rule.UpdatedAt,
		},
	}
}

// List returns the shop's rules, paged and optionally filtered by status
func (h *RuleHandler) List(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var status *bundling.RuleStatus
	if raw := c.Query("status"); raw != "" {
		parsed := bundling.RuleStatus(raw)
		if !parsed.IsValid() {
			h.BadRequest(c, "status must be one of: active, inactive")
			return
		}
		status = &parsed
	}

	page, err := h.rules.List(c.Request.Context(), sh.ID, status, listFilter(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]RuleResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toRuleResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Get returns one rule by ID
func (h *RuleHandler) Get(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	rule, err := h.rules.Get(c.Request.Context(), sh.ID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRuleResponse(rule))
}

// Create stores a new active rule for the shop
func (h *RuleHandler) Create(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), sh.ID, bundlingapp.RuleInput{
		Name:       req.Name,
		Members:    req.Members,
		BundledSKU: req.BundledSKU,
		Savings:    req.Savings,
	})
	if err != nil {
		h.handleRuleError(c, err)
		return
	}
	h.Created(c, toRuleResponse(rule))
}

// Update replaces the merchant-editable fields of an existing rule
func (h *RuleHandler) Update(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), sh.ID, id, bundlingapp.RuleInput{
		Name:       req.Name,
		Members:    req.Members,
		BundledSKU: req.BundledSKU,
		Savings:    req.Savings,
	})
	if err != nil {
		h.handleRuleError(c, err)
		return
	}
	h.Success(c, toRuleResponse(rule))
}

// Delete removes a rule. Recorded conversions keep their captured copy of
// the rule's financial fields.
func (h *RuleHandler) Delete(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	if err := h.rules.Delete(c.Request.Context(), sh.ID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Activate makes the rule eligible for matching again
func (h *RuleHandler) Activate(c *gin.Context) {
	h.setStatus(c, true)
}

// Deactivate withdraws the rule from matching without deleting it
func (h *RuleHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *RuleHandler) setStatus(c *gin.Context, active bool) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	var rule *bundling.BundleRule
	if active {
		rule, err = h.rules.Activate(c.Request.Context(), sh.ID, id)
	} else {
		rule, err = h.rules.Deactivate(c.Request.Context(), sh.ID, id)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRuleResponse(rule))
}

// handleRuleError maps rule invariant violations to 400s; everything else
// goes through the generic domain error path
func (h *RuleHandler) handleRuleError(c *gin.Context, err error) {
	switch err {
	case bundling.ErrRuleNameRequired,
		bundling.ErrRuleMembersEmpty,
		bundling.ErrRuleBundleSKUBlank,
		bundling.ErrRuleNegativeSaving:
		h.BadRequest(c, err.Error())
	default:
		h.HandleError(c, err)
	}
}
