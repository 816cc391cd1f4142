package platform

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Commerce Platform Errors
// ---------------------------------------------------------------------------

var (
	// Transport errors
	ErrRequestFailed   = errors.New("platform: request failed")
	ErrInvalidResponse = errors.New("platform: invalid response")
	ErrAuthFailed      = errors.New("platform: authentication failed")
	ErrRateLimited     = errors.New("platform: rate limited")
	ErrClientAbsent    = errors.New("platform: admin client not available")

	// Catalog errors
	ErrVariantNotFound = errors.New("platform: variant not found for sku")

	// Order edit errors
	ErrOrderNotFound    = errors.New("platform: order not found")
	ErrEditRejected     = errors.New("platform: order edit rejected")
	ErrEditLineNotFound = errors.New("platform: edit line item not found")

	// Billing errors
	ErrSubscriptionUnavailable = errors.New("platform: subscription status unavailable")
)

// ---------------------------------------------------------------------------
// SubscriptionStatus represents the state of an app subscription
// ---------------------------------------------------------------------------

// SubscriptionStatus represents the state of an app subscription
type SubscriptionStatus string

const (
	// SubscriptionStatusActive indicates a live, billed subscription
	SubscriptionStatusActive SubscriptionStatus = "ACTIVE"
	// SubscriptionStatusPending indicates merchant approval is outstanding
	SubscriptionStatusPending SubscriptionStatus = "PENDING"
	// SubscriptionStatusCancelled indicates the subscription was cancelled
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	// SubscriptionStatusExpired indicates the subscription lapsed
	SubscriptionStatusExpired SubscriptionStatus = "EXPIRED"
	// SubscriptionStatusFrozen indicates billing is paused by the platform
	SubscriptionStatusFrozen SubscriptionStatus = "FROZEN"
)

// IsValid returns true if the status is valid
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPending, SubscriptionStatusCancelled,
		SubscriptionStatusExpired, SubscriptionStatusFrozen:
		return true
	default:
		return false
	}
}

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsActive returns true if the subscription is currently billable
func (s SubscriptionStatus) IsActive() bool {
	return s == SubscriptionStatusActive
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// Order is the order representation delivered by the platform's
// orders/create webhook. Either SKU or VariantID may be absent on any
// line item; consumers must tolerate both.
type Order struct {
	// ID is the numeric order identifier on the platform
	ID int64 `json:"id"`
	// Name is the display number shown to the merchant (e.g. "#1001")
	Name string `json:"name"`
	// Currency is the presentment currency code
	Currency string `json:"currency"`
	// LineItems contains the order lines as delivered
	LineItems []OrderLineItem `json:"line_items"`
}

// OrderLineItem is a single line of an inbound order
type OrderLineItem struct {
	// ID is the live line item identifier
	ID int64 `json:"id"`
	// SKU is the merchant-assigned SKU string, possibly empty
	SKU string `json:"sku"`
	// VariantID is the structured variant identifier, zero when absent
	VariantID int64 `json:"variant_id"`
	// Quantity is the ordered quantity
	Quantity int `json:"quantity"`
	// Price is the unit price as quoted on the order
	Price decimal.Decimal `json:"price"`
	// Title is the product title, informational only
	Title string `json:"title"`
}

// Variant is a catalog variant resolved by SKU
type Variant struct {
	// ID is the platform's variant identifier (gid form)
	ID string
	// ProductID is the owning product identifier (gid form)
	ProductID string
	// SKU is the variant's SKU string
	SKU string
	// Title is the variant display title
	Title string
	// Price is the current catalog price
	Price decimal.Decimal
}

// EditSession is the platform's transient, mutable view of an order
// (a "calculated order") used to stage line changes before committing.
type EditSession struct {
	// ID is the calculated order identifier (gid form)
	ID string
	// OrderID is the underlying order's numeric identifier
	OrderID int64
	// Lines maps the live order lines into their session-scoped
	// counterparts; quantity changes address these, not the originals.
	Lines []EditLine
}

// EditLine is a session-scoped view of one order line
type EditLine struct {
	// ID is the session-scoped (calculated) line identifier
	ID string
	// VariantID is the numeric variant id behind the line, zero when absent
	VariantID int64
	// SKU is the line's SKU string, possibly empty
	SKU string
	// Quantity is the line's current quantity within the session
	Quantity int
}

// Line returns the session line backed by the given variant id, if any
func (s *EditSession) Line(variantID int64) (*EditLine, bool) {
	for i := range s.Lines {
		if s.Lines[i].VariantID == variantID && variantID != 0 {
			return &s.Lines[i], true
		}
	}
	return nil, false
}

// Subscription is the app subscription as reported by the platform
type Subscription struct {
	// Name is the plan display name chosen at purchase time
	Name string
	// Status is the subscription lifecycle state
	Status SubscriptionStatus
	// Test marks development-store test charges
	Test bool
}

// ---------------------------------------------------------------------------
// AdminClient Port Interface
// ---------------------------------------------------------------------------

// AdminClient is the per-shop port onto the commerce platform's Admin API.
// It is defined in the domain layer; the concrete GraphQL implementation
// lives in the infrastructure layer. A client is scoped to one shop and
// carries that shop's credentials.
type AdminClient interface {
	// FindVariantBySKU looks up a catalog variant by its SKU.
	// Returns ErrVariantNotFound when no variant carries the SKU.
	FindVariantBySKU(ctx context.Context, sku string) (*Variant, error)

	// BeginOrderEdit opens an edit session against a live order and
	// returns the session with its line mapping captured.
	BeginOrderEdit(ctx context.Context, orderID int64) (*EditSession, error)

	// AddVariantToEdit stages the addition of a variant to the session
	// and returns the identifier of the newly staged line.
	AddVariantToEdit(ctx context.Context, sessionID string, variantID string, quantity int) (string, error)

	// SetEditLineQuantity stages a quantity change for a session line.
	// Setting zero retires the line while preserving order history.
	SetEditLineQuantity(ctx context.Context, sessionID string, lineID string, quantity int) error

	// CommitOrderEdit finalizes the session. notifyCustomer controls
	// whether the platform emails the buyer about the change.
	CommitOrderEdit(ctx context.Context, sessionID string, notifyCustomer bool) error

	// ActiveSubscription returns the shop's current app subscription,
	// or nil when the shop has never subscribed.
	ActiveSubscription(ctx context.Context) (*Subscription, error)
}

// ClientFactory builds AdminClients for individual shops.
// Implementations return ErrClientAbsent when the shop has no usable
// credentials (e.g. uninstalled or mid-OAuth).
type ClientFactory interface {
	// ForShop returns a client bound to the shop's domain and token
	ForShop(shopDomain, accessToken string) (AdminClient, error)
}
