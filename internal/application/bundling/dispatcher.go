package bundling

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shop"
)

// dispatchTimeout bounds each notifier call; a hung SMTP server or webhook
// must not pin goroutines forever
const dispatchTimeout = 15 * time.Second

// Dispatcher fans a conversion notice out to the shop's enabled channels.
// Delivery is asynchronous and best effort: failures are logged and
// swallowed, never propagated to the pipeline.
type Dispatcher struct {
	notifiers []bundling.ConversionNotifier
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given channel notifiers
func NewDispatcher(notifiers []bundling.ConversionNotifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Dispatch sends the notice to every channel the shop has enabled. It
// returns immediately; the sends run detached from the request context so
// a finished webhook response does not cancel them.
func (d *Dispatcher) Dispatch(sh *shop.Shop, notice bundling.ConversionNotice) {
	for _, notifier := range d.notifiers {
		destination, enabled := destinationFor(sh.Notifications, notifier.Channel())
		if !enabled {
			continue
		}

		d.wg.Add(1)
		go func(n bundling.ConversionNotifier, dest string) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()

			if err := n.Notify(ctx, dest, notice); err != nil {
				d.logger.Warn("conversion notice delivery failed",
					zap.String("channel", n.Channel()),
					zap.String("shop_domain", notice.ShopDomain),
					zap.String("order_name", notice.OrderName),
					zap.Error(err))
			}
		}(notifier, destination)
	}
}

// Wait blocks until all in-flight sends finish. Used on shutdown and in
// tests; normal operation never waits.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// destinationFor maps a channel name onto the shop's settings
func destinationFor(settings shop.NotificationSettings, channel string) (string, bool) {
	switch channel {
	case "email":
		return settings.EmailAddress, settings.EmailEnabled && settings.EmailAddress != ""
	case "slack":
		return settings.SlackWebhookURL, settings.SlackEnabled && settings.SlackWebhookURL != ""
	default:
		return "", false
	}
}
