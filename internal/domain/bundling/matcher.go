package bundling

import (
	"github.com/bundlewise/backend/internal/domain/platform"
)

// Match finds the first active rule whose every member is present in the
// order's identifier set. Rules must arrive in creation order; evaluation
// stops at the first hit, so overlapping rules never both fire. The subset
// test deliberately permits extra order items beyond the bundle.
//
// A nil result means no rule applies. An empty identifier set short-circuits
// before any rule is examined.
func Match(identifiers IdentifierSet, rules []BundleRule) *BundleRule {
	if identifiers.Empty() {
		return nil
	}
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive() {
			continue
		}
		if ruleSatisfied(identifiers, rule) {
			return rule
		}
	}
	return nil
}

func ruleSatisfied(identifiers IdentifierSet, rule *BundleRule) bool {
	if len(rule.Members) == 0 {
		// A memberless rule would vacuously match every order.
		return false
	}
	for _, member := range rule.Members {
		if !identifiers.ContainsMember(member) {
			return false
		}
	}
	return true
}

// MatchedLines returns the order lines that satisfy the rule's members,
// in order position, deduplicated. These are the lines the orchestrator
// retires when applying the bundle.
func MatchedLines(order *platform.Order, rule *BundleRule) []platform.OrderLineItem {
	memberValues := make(map[string]struct{}, len(rule.Members))
	for _, member := range rule.Members {
		if id, ok := ParseIdentifier(member); ok {
			memberValues[id.Value] = struct{}{}
		}
	}

	matched := make([]platform.OrderLineItem, 0, len(rule.Members))
	for _, line := range order.LineItems {
		for _, id := range LineIdentifiers(line) {
			if _, ok := memberValues[id.Value]; ok {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// ReplacedIdentifiers returns the canonical identifier of each matched
// line, preferring the SKU space when both representations exist. This is
// what the conversion ledger stores as the replaced item set.
func ReplacedIdentifiers(lines []platform.OrderLineItem) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		ids := LineIdentifiers(line)
		if len(ids) == 0 {
			continue
		}
		out = append(out, ids[0].Value)
	}
	return out
}
