// Package notification implements the best-effort conversion notifiers:
// SMTP email and Slack incoming webhooks.
package notification

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bundlewise/backend/internal/domain/bundling"
)

var titleCaser = cases.Title(language.English)

// subject renders the one-line summary used as the email subject and the
// Slack fallback text
func subject(notice bundling.ConversionNotice) string {
	return fmt.Sprintf("Order %s converted to %s", notice.OrderName, titleCaser.String(notice.RuleName))
}

// body renders the plain-text notice body shared by both channels
func body(notice bundling.ConversionNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s on %s was converted to the %s bundle (%s).\n",
		notice.OrderName, notice.ShopDomain, titleCaser.String(notice.RuleName), notice.BundledSKU)
	if notice.Savings.IsPositive() {
		fmt.Fprintf(&b, "Recorded savings: %s %s\n", notice.Savings.StringFixed(2), notice.Currency)
	}
	return b.String()
}
