package bundling

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bundlewise/backend/internal/domain/shared"
)

var (
	ErrRuleNameRequired   = errors.New("bundling: rule name is required")
	ErrRuleMembersEmpty   = errors.New("bundling: rule needs at least one member item")
	ErrRuleBundleSKUBlank = errors.New("bundling: bundled sku is required")
	ErrRuleNegativeSaving = errors.New("bundling: savings amount cannot be negative")
)

// RuleStatus represents the lifecycle state of a bundle rule
type RuleStatus string

const (
	// RuleStatusActive means the rule participates in matching
	RuleStatusActive RuleStatus = "active"
	// RuleStatusInactive means the rule is kept but never matched
	RuleStatusInactive RuleStatus = "inactive"
)

// IsValid returns true if the status is valid
func (s RuleStatus) IsValid() bool {
	switch s {
	case RuleStatusActive, RuleStatusInactive:
		return true
	default:
		return false
	}
}

// String returns the string representation of RuleStatus
func (s RuleStatus) String() string {
	return string(s)
}

// BundleRule is a merchant-defined set of item identifiers that, when all
// present in one order, collapse into a single pre-packaged SKU. Members are
// stored as entered but matched as an unordered set across both identifier
// spaces. The conversion pipeline only ever increments MatchCount; all other
// mutation happens through the admin API.
type BundleRule struct {
	shared.BaseEntity
	ShopID     uuid.UUID
	Name       string
	Members    []string
	BundledSKU string
	Savings    decimal.Decimal
	Status     RuleStatus
	MatchCount int64
}

// NewBundleRule creates an active rule after validating its invariants
func NewBundleRule(shopID uuid.UUID, name string, members []string, bundledSKU string, savings decimal.Decimal) (*BundleRule, error) {
	rule := &BundleRule{
		BaseEntity: shared.NewBaseEntity(),
		ShopID:     shopID,
		Name:       strings.TrimSpace(name),
		Members:    normalizeMembers(members),
		BundledSKU: strings.TrimSpace(bundledSKU),
		Savings:    savings,
		Status:     RuleStatusActive,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the rule's invariants
func (r *BundleRule) Validate() error {
	if r.ShopID == uuid.Nil {
		return shared.ErrInvalidInput
	}
	if r.Name == "" {
		return ErrRuleNameRequired
	}
	if len(r.Members) == 0 {
		return ErrRuleMembersEmpty
	}
	if r.BundledSKU == "" {
		return ErrRuleBundleSKUBlank
	}
	if r.Savings.IsNegative() {
		return ErrRuleNegativeSaving
	}
	if !r.Status.IsValid() {
		return shared.ErrInvalidState
	}
	return nil
}

// IsActive reports whether the rule participates in matching
func (r *BundleRule) IsActive() bool {
	return r.Status == RuleStatusActive
}

// Activate makes the rule eligible for matching
func (r *BundleRule) Activate() {
	r.Status = RuleStatusActive
	r.Touch()
}

// Deactivate withdraws the rule from matching without deleting it
func (r *BundleRule) Deactivate() {
	r.Status = RuleStatusInactive
	r.Touch()
}

// Update replaces the merchant-editable fields after validation
func (r *BundleRule) Update(name string, members []string, bundledSKU string, savings decimal.Decimal) error {
	updated := *r
	updated.Name = strings.TrimSpace(name)
	updated.Members = normalizeMembers(members)
	updated.BundledSKU = strings.TrimSpace(bundledSKU)
	updated.Savings = savings
	if err := updated.Validate(); err != nil {
		return err
	}
	r.Name = updated.Name
	r.Members = updated.Members
	r.BundledSKU = updated.BundledSKU
	r.Savings = updated.Savings
	r.Touch()
	return nil
}

// RecordMatch bumps the in-memory frequency counter. The persistent
// counterpart is an atomic column increment in the repository.
func (r *BundleRule) RecordMatch() {
	r.MatchCount++
	r.Touch()
}

// normalizeMembers trims entries and drops blanks and duplicates while
// preserving the order the merchant entered them in
func normalizeMembers(members []string) []string {
	out := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
