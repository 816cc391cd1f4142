package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bundlingapp "github.com/bundlewise/backend/internal/application/bundling"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/platform"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/interfaces/http/middleware"
)

// webhookDedupePrefix namespaces webhook delivery IDs in the shared store
const webhookDedupePrefix = "webhook:idempotency:"

// WebhookHandler receives platform webhooks. Every handled delivery answers
// 200 regardless of business disposition; anything else triggers platform
// redelivery and, eventually, webhook deregistration. The fast-path dedupe
// on the delivery ID is best effort; the ledger's uniqueness constraint is
// the real guarantee.
type WebhookHandler struct {
	BaseHandler
	conversions *bundlingapp.ConversionService
	shops       *shopapp.ShopService
	dedupe      shared.IdempotencyStore
	dedupeCfg   shared.IdempotencyConfig
	logger      *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. dedupe may be nil, which
// disables the fast-path filter.
func NewWebhookHandler(
	conversions *bundlingapp.ConversionService,
	shops *shopapp.ShopService,
	dedupe shared.IdempotencyStore,
	dedupeCfg shared.IdempotencyConfig,
	logger *zap.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		conversions: conversions,
		shops:       shops,
		dedupe:      dedupe,
		dedupeCfg:   dedupeCfg,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook endpoints. These live outside the
// versioned API group: they are authenticated by HMAC, not session tokens.
func (h *WebhookHandler) RegisterRoutes(r gin.IRouter, mw ...gin.HandlerFunc) {
	webhooks := r.Group("/webhooks", mw...)
	{
		webhooks.POST("/orders/create", h.HandleOrderCreate)
		webhooks.POST("/app/uninstalled", h.HandleAppUninstalled)
		webhooks.POST("/customers/data_request", h.HandleGDPR)
		webhooks.POST("/customers/redact", h.HandleGDPR)
		webhooks.POST("/shop/redact", h.HandleGDPR)
	}
}

type webhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

func (h *WebhookHandler) ack(c *gin.Context, outcome string) {
	c.JSON(http.StatusOK, webhookAck{Received: true, Outcome: outcome})
}

// HandleOrderCreate runs an inbound order through the conversion pipeline
func (h *WebhookHandler) HandleOrderCreate(c *gin.Context) {
	shopDomain := c.GetHeader(middleware.HeaderWebhookShop)
	deliveryID := c.GetHeader(middleware.HeaderWebhookID)
	log := h.logger.With(
		zap.String("shop_domain", shopDomain),
		zap.String("webhook_id", deliveryID))

	if fresh := h.markDelivery(c, deliveryID, log); !fresh {
		h.ack(c, "duplicate_delivery")
		return
	}

	body, ok := middleware.WebhookBody(c)
	if !ok {
		// HMAC middleware did not run; treat the raw body as unverified
		// and refuse rather than process it
		h.Unauthorized(c, "Webhook signature not verified")
		return
	}

	var order platform.Order
	if err := json.Unmarshal(body, &order); err != nil {
		log.Warn("undecodable order payload", zap.Error(err))
		h.ack(c, "undecodable_payload")
		return
	}

	sh, err := h.shops.GetByDomain(c.Request.Context(), shopDomain)
	if err != nil {
		// Unknown or malformed shop: nothing to do, and a non-200 would
		// only provoke redeliveries of an event we can never use
		log.Warn("order webhook for unknown shop", zap.Error(err))
		h.ack(c, "unknown_shop")
		return
	}
	if !sh.IsActive() {
		h.ack(c, "shop_uninstalled")
		return
	}

	result, err := h.conversions.Process(c.Request.Context(), sh, &order)
	if err != nil {
		// Infrastructure fault: a 500 here makes the platform redeliver,
		// and the ledger makes the retry safe
		log.Error("conversion pipeline failed", zap.Error(err))
		h.InternalError(c, "Order processing failed")
		return
	}

	if result.EditErr != nil {
		log.Warn("order rewrite failed, ledger retained",
			zap.Int64("order_id", order.ID),
			zap.Error(result.EditErr))
	}
	h.ack(c, string(result.Outcome))
}

// HandleAppUninstalled deactivates the shop and its rules
func (h *WebhookHandler) HandleAppUninstalled(c *gin.Context) {
	shopDomain := c.GetHeader(middleware.HeaderWebhookShop)
	log := h.logger.With(zap.String("shop_domain", shopDomain))

	if fresh := h.markDelivery(c, c.GetHeader(middleware.HeaderWebhookID), log); !fresh {
		h.ack(c, "duplicate_delivery")
		return
	}

	if err := h.shops.Uninstall(c.Request.Context(), shopDomain); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.ack(c, "unknown_shop")
			return
		}
		log.Error("uninstall handling failed", zap.Error(err))
		h.InternalError(c, "Uninstall processing failed")
		return
	}
	h.ack(c, "uninstalled")
}

// HandleGDPR acknowledges the mandatory privacy webhooks. The app stores no
// customer-level data, so data_request and redact have nothing to return or
// erase; shop/redact is superseded by the uninstall flow that already ran.
func (h *WebhookHandler) HandleGDPR(c *gin.Context) {
	h.logger.Info("privacy webhook received",
		zap.String("topic", c.GetHeader(middleware.HeaderWebhookTopic)),
		zap.String("shop_domain", c.GetHeader(middleware.HeaderWebhookShop)))
	h.ack(c, "acknowledged")
}

// markDelivery runs the fast-path dedupe on the platform's delivery ID.
// Returns false only when the store positively remembers the ID; store
// errors and missing IDs degrade to processing the event, because the
// ledger behind it is idempotent anyway.
func (h *WebhookHandler) markDelivery(c *gin.Context, deliveryID string, log *zap.Logger) bool {
	if h.dedupe == nil || !h.dedupeCfg.Enabled || deliveryID == "" {
		return true
	}
	fresh, err := h.dedupe.MarkProcessed(c.Request.Context(), webhookDedupePrefix+deliveryID, h.dedupeCfg.TTL)
	if err != nil {
		log.Warn("webhook dedupe store unavailable, processing anyway", zap.Error(err))
		return true
	}
	if !fresh {
		log.Info("duplicate webhook delivery suppressed")
	}
	return fresh
}
