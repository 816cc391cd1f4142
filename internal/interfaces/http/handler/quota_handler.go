package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/bundlewise/backend/internal/application/billing"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/billing"
)

// QuotaHandler exposes the shop's current plan and monthly allowance view
type QuotaHandler struct {
	BaseHandler
	quota  *billingapp.QuotaService
	shops  *shopapp.ShopService
	logger *zap.Logger
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quota *billingapp.QuotaService, shops *shopapp.ShopService, logger *zap.Logger) *QuotaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaHandler{quota: quota, shops: shops, logger: logger}
}

// RegisterRoutes registers quota endpoints on the API group
func (h *QuotaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/quota", h.GetQuota)
}

// QuotaResponse represents the shop's quota snapshot. Remaining is -1 for
// uncapped tiers, matching the allowance sentinel.
type QuotaResponse struct {
	Tier        string    `json:"tier"`
	Allowance   int64     `json:"allowance"`
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	Unlimited   bool      `json:"unlimited"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// GetQuota returns the shop's resolved tier and current-month usage
func (h *QuotaHandler) GetQuota(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	snapshot, err := h.quota.Snapshot(c.Request.Context(), sh)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, QuotaResponse{
		Tier:        snapshot.Tier.String(),
		Allowance:   snapshot.Allowance,
		Used:        snapshot.Used,
		Remaining:   snapshot.Remaining(),
		Unlimited:   snapshot.Allowance == billing.UnlimitedAllowance,
		PeriodStart: snapshot.PeriodStart,
		PeriodEnd:   snapshot.PeriodEnd,
	})
}
