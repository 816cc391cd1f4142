// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ConversionMetrics provides business metrics for the bundling pipeline.
// It tracks completed conversions, skipped events, recorded savings, and
// order edit failures by phase.
type ConversionMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	conversionTotal        *Counter
	conversionSkippedTotal *Counter
	savingsTotal           *Counter
	editFailureTotal       *Counter
}

// SkipReason labels why an inbound order event produced no conversion.
type SkipReason string

const (
	SkipReasonNoIdentifiers SkipReason = "no_identifiers"
	SkipReasonNoMatch       SkipReason = "no_match"
	SkipReasonQuotaExceeded SkipReason = "quota_exceeded"
	SkipReasonDuplicate     SkipReason = "duplicate"
)

// ConversionMetricsConfig holds configuration for conversion metrics.
type ConversionMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewConversionMetrics creates a new ConversionMetrics instance.
func NewConversionMetrics(cfg ConversionMetricsConfig) (*ConversionMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &ConversionMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	cm.conversionTotal, err = NewCounter(
		cfg.Meter,
		"bundlewise_conversion_total",
		"Total number of orders converted to bundles",
		"{conversions}",
	)
	if err != nil {
		return nil, err
	}

	cm.conversionSkippedTotal, err = NewCounter(
		cfg.Meter,
		"bundlewise_conversion_skipped_total",
		"Total number of order events that produced no conversion",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	cm.savingsTotal, err = NewCounter(
		cfg.Meter,
		"bundlewise_savings_total",
		"Total recorded savings in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	cm.editFailureTotal, err = NewCounter(
		cfg.Meter,
		"bundlewise_order_edit_failure_total",
		"Total number of failed order edit attempts by phase",
		"{failures}",
	)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// RecordConversion records a successful ledger write, together with the
// savings captured on the conversion. Savings are exported in cents.
func (cm *ConversionMetrics) RecordConversion(ctx context.Context, shopID uuid.UUID, ruleID uuid.UUID, savings decimal.Decimal) {
	cm.conversionTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrRuleID.String(ruleID.String()),
	)

	cents := savings.Mul(decimal.NewFromInt(100)).IntPart()
	if cents > 0 {
		cm.savingsTotal.Add(ctx, cents,
			AttrShopID.String(shopID.String()),
		)
	}
}

// RecordSkipped records an order event that ended without a conversion.
func (cm *ConversionMetrics) RecordSkipped(ctx context.Context, shopID uuid.UUID, reason SkipReason) {
	cm.conversionSkippedTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrSkipReason.String(string(reason)),
	)
}

// RecordEditFailure records a failed order rewrite, labeled by the phase
// that broke. The ledger row survives the failure; this counter is the
// operational signal that the reconciliation listing has new entries.
func (cm *ConversionMetrics) RecordEditFailure(ctx context.Context, shopID uuid.UUID, phase string) {
	cm.editFailureTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrEditPhase.String(phase),
	)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewConversionMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
