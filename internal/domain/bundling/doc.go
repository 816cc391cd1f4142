// Package bundling provides the domain model for order-to-bundle conversion.
//
// This package implements the bundling bounded context, which is responsible for:
//   - Defining merchant bundle rules (member item sets that collapse into one SKU)
//   - Matching inbound order contents against the active rule set
//   - Recording conversions exactly once per (shop, order) in the conversion ledger
//   - Tracking the order rewrite through its explicit edit state machine
//
// Key Aggregates:
//   - BundleRule: Merchant-defined member set, target SKU, savings and status
//   - OrderConversion: Immutable financial record of a match, plus edit outcome
//
// Value Objects:
//   - ItemIdentifier / IdentifierSet: Normalization across the two identifier
//     spaces (SKU strings and structured variant ids)
//
// The bundling domain integrates with:
//   - Platform domain: Inbound order payloads and the Admin API port
//   - Billing domain: Monthly conversion allowances derived from subscription tier
package bundling
