package bundling

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bundlewise/backend/internal/domain/shared"
)

var (
	ErrConversionRuleRequired  = errors.New("bundling: conversion needs the matched rule")
	ErrConversionOrderRequired = errors.New("bundling: conversion needs an order identifier")
	ErrConversionItemsEmpty    = errors.New("bundling: conversion needs the replaced item identifiers")
	ErrIllegalEditTransition   = errors.New("bundling: illegal order edit state transition")
)

// EditStatus tracks the order rewrite through its state machine:
// pending → resolved → editing → lines_applied → committed, with failed
// (plus the phase that broke) reachable from every non-terminal state.
type EditStatus string

const (
	// EditStatusPending means no rewrite attempt has started yet
	EditStatusPending EditStatus = "pending"
	// EditStatusResolved means the bundle variant was found in the catalog
	EditStatusResolved EditStatus = "resolved"
	// EditStatusEditing means an edit session is open against the order
	EditStatusEditing EditStatus = "editing"
	// EditStatusLinesApplied means the bundle line was added and originals retired
	EditStatusLinesApplied EditStatus = "lines_applied"
	// EditStatusCommitted means the edit session was finalized
	EditStatusCommitted EditStatus = "committed"
	// EditStatusFailed means a phase errored; FailedPhase says which
	EditStatusFailed EditStatus = "failed"
)

// IsValid returns true if the status is valid
func (s EditStatus) IsValid() bool {
	switch s {
	case EditStatusPending, EditStatusResolved, EditStatusEditing,
		EditStatusLinesApplied, EditStatusCommitted, EditStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of EditStatus
func (s EditStatus) String() string {
	return string(s)
}

// EditPhase names the four phases of the order rewrite protocol
type EditPhase string

const (
	// EditPhaseResolve is the catalog lookup of the bundle variant
	EditPhaseResolve EditPhase = "resolve"
	// EditPhaseBegin opens the edit session
	EditPhaseBegin EditPhase = "begin_edit"
	// EditPhaseApplyLines adds the bundle line and retires originals
	EditPhaseApplyLines EditPhase = "apply_lines"
	// EditPhaseCommit finalizes the session
	EditPhaseCommit EditPhase = "commit"
)

// IsValid returns true if the phase is valid
func (p EditPhase) IsValid() bool {
	switch p {
	case EditPhaseResolve, EditPhaseBegin, EditPhaseApplyLines, EditPhaseCommit:
		return true
	default:
		return false
	}
}

// String returns the string representation of EditPhase
func (p EditPhase) String() string {
	return string(p)
}

// OrderConversion is the recorded fact that an order matched a rule and was
// (attempted to be) rewritten. It is the system's idempotency anchor: at
// most one exists per (shop, order), enforced by a database uniqueness
// constraint. The financial fields are immutable after insert; only the
// edit outcome fields may change, because the ledger records the conversion
// even when the live order rewrite fails.
type OrderConversion struct {
	shared.BaseEntity
	ShopID        uuid.UUID
	OrderID       int64
	OrderName     string
	RuleID        uuid.UUID
	BundledSKU    string
	OriginalItems []string
	Savings       decimal.Decimal
	EditStatus    EditStatus
	FailedPhase   *EditPhase
}

// NewOrderConversion records a match against a rule, capturing the bundle
// SKU and savings as they stand now so later rule edits cannot rewrite
// history. The edit status starts pending; the orchestrator advances it.
func NewOrderConversion(shopID uuid.UUID, orderID int64, orderName string, rule *BundleRule, originalItems []string) (*OrderConversion, error) {
	if rule == nil {
		return nil, ErrConversionRuleRequired
	}
	if shopID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if orderID == 0 {
		return nil, ErrConversionOrderRequired
	}
	if len(originalItems) == 0 {
		return nil, ErrConversionItemsEmpty
	}
	items := make([]string, len(originalItems))
	copy(items, originalItems)
	return &OrderConversion{
		BaseEntity:    shared.NewBaseEntity(),
		ShopID:        shopID,
		OrderID:       orderID,
		OrderName:     orderName,
		RuleID:        rule.ID,
		BundledSKU:    rule.BundledSKU,
		OriginalItems: items,
		Savings:       rule.Savings,
		EditStatus:    EditStatusPending,
	}, nil
}

// MarkResolved records that the bundle variant exists in the catalog
func (c *OrderConversion) MarkResolved() error {
	return c.advance(EditStatusPending, EditStatusResolved)
}

// MarkEditing records that the edit session is open
func (c *OrderConversion) MarkEditing() error {
	return c.advance(EditStatusResolved, EditStatusEditing)
}

// MarkLinesApplied records that the line changes are staged
func (c *OrderConversion) MarkLinesApplied() error {
	return c.advance(EditStatusEditing, EditStatusLinesApplied)
}

// MarkCommitted records that the rewrite finished
func (c *OrderConversion) MarkCommitted() error {
	return c.advance(EditStatusLinesApplied, EditStatusCommitted)
}

// MarkEditFailed records which phase broke. Legal from any state except
// committed; the ledger row itself is never invalidated by a failure.
func (c *OrderConversion) MarkEditFailed(phase EditPhase) error {
	if c.EditStatus == EditStatusCommitted {
		return ErrIllegalEditTransition
	}
	if !phase.IsValid() {
		return shared.ErrInvalidInput
	}
	c.EditStatus = EditStatusFailed
	c.FailedPhase = &phase
	c.Touch()
	return nil
}

// ResetForRetry rewinds a failed conversion so a redelivered event can
// re-drive the rewrite. Only failed conversions can be rewound.
func (c *OrderConversion) ResetForRetry() error {
	if c.EditStatus != EditStatusFailed {
		return ErrIllegalEditTransition
	}
	c.EditStatus = EditStatusPending
	c.FailedPhase = nil
	c.Touch()
	return nil
}

// EditCommitted reports whether the rewrite reached the platform
func (c *OrderConversion) EditCommitted() bool {
	return c.EditStatus == EditStatusCommitted
}

// EditRetryable reports whether a redelivery should re-attempt the rewrite
func (c *OrderConversion) EditRetryable() bool {
	return c.EditStatus == EditStatusFailed
}

func (c *OrderConversion) advance(from, to EditStatus) error {
	if c.EditStatus != from {
		return ErrIllegalEditTransition
	}
	c.EditStatus = to
	c.Touch()
	return nil
}
