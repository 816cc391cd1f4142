package billing

import (
	"strings"
)

// PlanTier represents the subscription tier of a shop
type PlanTier string

const (
	PlanTierFree    PlanTier = "free"
	PlanTierStarter PlanTier = "starter"
	PlanTierGrowth  PlanTier = "growth"
	PlanTierPro     PlanTier = "pro"
)

// UnlimitedAllowance marks a tier with no monthly cap
const UnlimitedAllowance int64 = -1

// monthlyAllowances maps each tier to its conversions-per-month allowance
var monthlyAllowances = map[PlanTier]int64{
	PlanTierFree:    50,
	PlanTierStarter: 500,
	PlanTierGrowth:  2000,
	PlanTierPro:     UnlimitedAllowance,
}

// IsValid returns true if the tier is valid
func (t PlanTier) IsValid() bool {
	_, ok := monthlyAllowances[t]
	return ok
}

// String returns the string representation of PlanTier
func (t PlanTier) String() string {
	return string(t)
}

// MonthlyAllowance returns the tier's conversions-per-month allowance,
// UnlimitedAllowance for uncapped tiers
func (t PlanTier) MonthlyAllowance() int64 {
	if allowance, ok := monthlyAllowances[t]; ok {
		return allowance
	}
	return monthlyAllowances[PlanTierFree]
}

// IsUnlimited returns true if the tier has no monthly cap
func (t PlanTier) IsUnlimited() bool {
	return t.MonthlyAllowance() == UnlimitedAllowance
}

// ParseTier normalizes a stored tier string, falling back to free
func ParseTier(raw string) PlanTier {
	tier := PlanTier(strings.ToLower(strings.TrimSpace(raw)))
	if tier.IsValid() {
		return tier
	}
	return PlanTierFree
}

// TierForPlanName maps a subscription's display name onto a tier.
// Plan names are chosen at purchase time ("Growth", "Pro (annual)", ...)
// and are matched loosely; unknown names land on the free tier so a
// renamed plan can never grant more than it should.
func TierForPlanName(name string) PlanTier {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(normalized, "pro"):
		return PlanTierPro
	case strings.Contains(normalized, "growth"):
		return PlanTierGrowth
	case strings.Contains(normalized, "starter"):
		return PlanTierStarter
	default:
		return PlanTierFree
	}
}
