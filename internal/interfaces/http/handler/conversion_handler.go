package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bundlingapp "github.com/bundlewise/backend/internal/application/bundling"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/interfaces/http/dto"
)

// ConversionHandler exposes the read side of the conversion ledger
type ConversionHandler struct {
	BaseHandler
	queries *bundlingapp.ConversionQueryService
	shops   *shopapp.ShopService
	logger  *zap.Logger
}

// NewConversionHandler creates a new ConversionHandler
func NewConversionHandler(queries *bundlingapp.ConversionQueryService, shops *shopapp.ShopService, logger *zap.Logger) *ConversionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionHandler{queries: queries, shops: shops, logger: logger}
}

// RegisterRoutes registers conversion history endpoints on the API group
func (h *ConversionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conversions := rg.Group("/conversions")
	{
		conversions.GET("", h.List)
		conversions.GET("/summary", h.Summary)
	}
}

// ConversionResponse represents a recorded conversion in API responses
type ConversionResponse struct {
	ID            string          `json:"id"`
	OrderID       int64           `json:"order_id"`
	OrderName     string          `json:"order_name"`
	RuleID        string          `json:"rule_id"`
	BundledSKU    string          `json:"bundled_sku"`
	OriginalItems []string        `json:"original_items"`
	Savings       decimal.Decimal `json:"savings"`
	EditStatus    string          `json:"edit_status"`
	FailedPhase   string          `json:"failed_phase,omitempty"`
	dto.TimestampResponse
}

func toConversionResponse(conv *bundling.OrderConversion) ConversionResponse {
	resp := ConversionResponse{
		ID:            conv.ID.String(),
		OrderID:       conv.OrderID,
		OrderName:     conv.OrderName,
		RuleID:        conv.RuleID.String(),
		BundledSKU:    conv.BundledSKU,
		OriginalItems: conv.OriginalItems,
		Savings:       conv.Savings,
		EditStatus:    conv.EditStatus.String(),
		TimestampResponse: dto.TimestampResponse{
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		},
	}
	if conv.FailedPhase != nil {
		resp.FailedPhase = conv.FailedPhase.String()
	}
	return resp
}

// List returns the shop's conversion history, paged and optionally filtered
// by edit status. Filtering on failed is the reconciliation view for
// rewrites that never reached the platform.
func (h *ConversionHandler) List(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var editStatus *bundling.EditStatus
	if raw := c.Query("edit_status"); raw != "" {
		parsed := bundling.EditStatus(raw)
		if !parsed.IsValid() {
			h.BadRequest(c, "edit_status must be one of: pending, resolved, editing, lines_applied, committed, failed")
			return
		}
		editStatus = &parsed
	}

	page, err := h.queries.List(c.Request.Context(), sh.ID, editStatus, listFilter(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]ConversionResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toConversionResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Summary returns the shop's lifetime conversion count and recorded savings
func (h *ConversionHandler) Summary(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.queries.Summary(c.Request.Context(), sh.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
