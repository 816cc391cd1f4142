package bundling

import (
	"strconv"
	"strings"

	"github.com/bundlewise/backend/internal/domain/platform"
)

// The platform exposes two parallel identifier spaces for the same catalog
// items: merchant-assigned SKU strings and structured variant identifiers
// (numeric, sometimes wrapped in a gid URI). Rule members may be written in
// either space, so everything is normalized into ItemIdentifier before any
// comparison happens.

// IdentifierKind tags which identifier space a value came from
type IdentifierKind string

const (
	// IdentifierKindSKU marks a merchant-assigned SKU string
	IdentifierKindSKU IdentifierKind = "sku"
	// IdentifierKindVariant marks a structured variant identifier
	IdentifierKindVariant IdentifierKind = "variant"
)

const variantGIDPrefix = "gid://shopify/ProductVariant/"

// ItemIdentifier is one normalized representation of an order item or rule
// member. Equality is defined on the canonical value regardless of kind, so
// a rule member written as a variant id matches an order line carrying that
// variant, and one written as a SKU matches the line's SKU.
type ItemIdentifier struct {
	Kind  IdentifierKind
	Value string
}

// SKUIdentifier builds an identifier from a SKU string.
// Returns false when the SKU is blank.
func SKUIdentifier(sku string) (ItemIdentifier, bool) {
	trimmed := strings.TrimSpace(sku)
	if trimmed == "" {
		return ItemIdentifier{}, false
	}
	return ItemIdentifier{Kind: IdentifierKindSKU, Value: trimmed}, true
}

// VariantIdentifier builds an identifier from a structured variant id.
// Returns false when the id is absent (zero).
func VariantIdentifier(id int64) (ItemIdentifier, bool) {
	if id == 0 {
		return ItemIdentifier{}, false
	}
	return ItemIdentifier{Kind: IdentifierKindVariant, Value: strconv.FormatInt(id, 10)}, true
}

// ParseIdentifier normalizes a rule member string into an identifier.
// Members in gid form canonicalize to their numeric tail; purely numeric
// members are treated as variant ids; everything else is a SKU.
// Returns false for blank input.
func ParseIdentifier(raw string) (ItemIdentifier, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ItemIdentifier{}, false
	}
	if tail, ok := strings.CutPrefix(trimmed, variantGIDPrefix); ok {
		if id, err := strconv.ParseInt(tail, 10, 64); err == nil && id != 0 {
			return ItemIdentifier{Kind: IdentifierKindVariant, Value: strconv.FormatInt(id, 10)}, true
		}
		// Malformed gid: fall through and match it verbatim.
	}
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil && id > 0 {
		return ItemIdentifier{Kind: IdentifierKindVariant, Value: trimmed}, true
	}
	return ItemIdentifier{Kind: IdentifierKindSKU, Value: trimmed}, true
}

// Equals reports whether two identifiers refer to the same canonical value.
// Kind is deliberately excluded: cross-space equality is the point.
func (i ItemIdentifier) Equals(other ItemIdentifier) bool {
	return i.Value == other.Value
}

// String returns the canonical value
func (i ItemIdentifier) String() string {
	return i.Value
}

// IdentifierSet holds every identifier representation extracted from one
// order. A single line item contributes up to two entries, one per space.
type IdentifierSet struct {
	values map[string]struct{}
	items  []ItemIdentifier
}

// NewIdentifierSet builds a set from explicit identifiers
func NewIdentifierSet(ids ...ItemIdentifier) IdentifierSet {
	set := IdentifierSet{values: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		set.add(id)
	}
	return set
}

// IdentifiersFromOrder extracts every usable identifier from an inbound
// order. Lines missing both a SKU and a variant id contribute nothing.
func IdentifiersFromOrder(order *platform.Order) IdentifierSet {
	set := IdentifierSet{values: make(map[string]struct{}, len(order.LineItems)*2)}
	for _, line := range order.LineItems {
		if id, ok := SKUIdentifier(line.SKU); ok {
			set.add(id)
		}
		if id, ok := VariantIdentifier(line.VariantID); ok {
			set.add(id)
		}
	}
	return set
}

func (s *IdentifierSet) add(id ItemIdentifier) {
	if _, seen := s.values[id.Value]; seen {
		return
	}
	s.values[id.Value] = struct{}{}
	s.items = append(s.items, id)
}

// Contains reports whether the set holds the identifier's canonical value
func (s IdentifierSet) Contains(id ItemIdentifier) bool {
	_, ok := s.values[id.Value]
	return ok
}

// ContainsMember reports whether a rule member string, normalized through
// ParseIdentifier, is satisfied by this set
func (s IdentifierSet) ContainsMember(member string) bool {
	id, ok := ParseIdentifier(member)
	if !ok {
		return false
	}
	return s.Contains(id)
}

// Empty reports whether no usable identifiers were extracted
func (s IdentifierSet) Empty() bool {
	return len(s.items) == 0
}

// Size returns the number of distinct identifiers in the set
func (s IdentifierSet) Size() int {
	return len(s.items)
}

// Values returns the canonical values in insertion order
func (s IdentifierSet) Values() []string {
	out := make([]string, 0, len(s.items))
	for _, id := range s.items {
		out = append(out, id.Value)
	}
	return out
}

// LineIdentifiers returns the identifier representations of a single order
// line, SKU space first. An empty result means the line is unmatchable.
func LineIdentifiers(line platform.OrderLineItem) []ItemIdentifier {
	ids := make([]ItemIdentifier, 0, 2)
	if id, ok := SKUIdentifier(line.SKU); ok {
		ids = append(ids, id)
	}
	if id, ok := VariantIdentifier(line.VariantID); ok {
		ids = append(ids, id)
	}
	return ids
}
