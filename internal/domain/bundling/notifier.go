package bundling

import (
	"context"

	"github.com/shopspring/decimal"
)

// ConversionNotice is the merchant-facing summary of one completed
// conversion, rendered by channel-specific notifiers.
type ConversionNotice struct {
	ShopDomain string
	OrderName  string
	RuleName   string
	BundledSKU string
	Savings    decimal.Decimal
	Currency   string
}

// ConversionNotifier delivers a notice to one destination over one channel.
// Delivery is best effort: the pipeline never fails or retries because a
// notice did not go out.
type ConversionNotifier interface {
	// Channel names the transport for logging ("email", "slack")
	Channel() string

	// Notify sends the notice to the channel-specific destination
	// (an email address, a webhook URL)
	Notify(ctx context.Context, destination string, notice ConversionNotice) error
}
