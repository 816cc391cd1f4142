package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/interfaces/http/middleware"
)

// SettingsHandler exposes the shop's notification preferences
type SettingsHandler struct {
	BaseHandler
	shops  *shopapp.ShopService
	logger *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(shops *shopapp.ShopService, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{shops: shops, logger: logger}
}

// RegisterRoutes registers settings endpoints on the API group
func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	settings := rg.Group("/settings")
	{
		settings.GET("/notifications", h.GetNotifications)
		settings.PUT("/notifications", h.UpdateNotifications)
	}
}

// NotificationSettingsRequest carries the shop's notification preferences.
// An enabled channel must name its target; the cross-field rule lives in
// the domain and surfaces as INVALID_NOTIFICATION_TARGET.
type NotificationSettingsRequest struct {
	EmailEnabled    bool   `json:"email_enabled"`
	EmailAddress    string `json:"email_address" binding:"omitempty,email"`
	SlackEnabled    bool   `json:"slack_enabled"`
	SlackWebhookURL string `json:"slack_webhook_url" binding:"omitempty,url"`
}

// GetNotifications returns the shop's current notification preferences
func (h *SettingsHandler) GetNotifications(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sh.Notifications)
}

// UpdateNotifications replaces the shop's notification preferences
func (h *SettingsHandler) UpdateNotifications(c *gin.Context) {
	sh, err := resolveShop(c, h.shops)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req NotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	updated, err := h.shops.UpdateNotificationSettings(c.Request.Context(), sh.ID, shop.NotificationSettings{
		EmailEnabled:    req.EmailEnabled,
		EmailAddress:    req.EmailAddress,
		SlackEnabled:    req.SlackEnabled,
		SlackWebhookURL: req.SlackWebhookURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, updated.Notifications)
}
